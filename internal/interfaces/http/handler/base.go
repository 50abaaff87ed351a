package handler

import (
	"github.com/gin-gonic/gin"

	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
)

// bindJSON 绑定请求体，失败时写入 400 响应
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// dbError 仓储错误统一包装为数据库错误
func dbError(err error, msg string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, msg)
}
