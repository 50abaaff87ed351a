package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
)

// SpeedButtonHandler 快捷引导处理器
type SpeedButtonHandler struct {
	repo repository.SpeedButtonRepository
}

// NewSpeedButtonHandler 创建快捷引导处理器
func NewSpeedButtonHandler(repo repository.SpeedButtonRepository) *SpeedButtonHandler {
	return &SpeedButtonHandler{repo: repo}
}

// @Router /v1/speed-buttons [get]
func (h *SpeedButtonHandler) List(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context())
	if err != nil {
		dto.FromError(c, dbError(err, "failed to list speed buttons"))
		return
	}
	dto.Success(c, items)
}

// @Router /v1/speed-buttons [post]
func (h *SpeedButtonHandler) Create(c *gin.Context) {
	var req dto.CreateSpeedButtonRequest
	if !bindJSON(c, &req) {
		return
	}
	button := req.ToEntity()
	if err := h.repo.Create(c.Request.Context(), button); err != nil {
		dto.FromError(c, dbError(err, "failed to create speed button"))
		return
	}
	dto.Created(c, button)
}

// @Router /v1/speed-buttons/{id} [get]
func (h *SpeedButtonHandler) Get(c *gin.Context) {
	id := dto.BindID(c)
	button, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get speed button"))
		return
	}
	if button == nil {
		dto.FromError(c, apperrors.ErrNotFound.WithDetail("speed button "+id))
		return
	}
	dto.Success(c, button)
}

// Reorder 按 button_ids 的顺序重写展示顺序，返回重排后的完整列表
// @Router /v1/speed-buttons/reorder [post]
func (h *SpeedButtonHandler) Reorder(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.ReorderSpeedButtonsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		dto.FromError(c, err)
		return
	}
	if err := h.repo.Reorder(ctx, req.ButtonIDs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			dto.FromError(c, apperrors.ErrInvalidParam.WithDetail("one or more button ids are invalid"))
			return
		}
		dto.FromError(c, dbError(err, "failed to reorder speed buttons"))
		return
	}
	items, err := h.repo.List(ctx)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to list speed buttons"))
		return
	}
	dto.Success(c, items)
}

// @Router /v1/speed-buttons/{id} [put]
func (h *SpeedButtonHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := dto.BindID(c)

	var req dto.UpdateSpeedButtonRequest
	if !bindJSON(c, &req) {
		return
	}
	button, err := h.repo.GetByID(ctx, id)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get speed button"))
		return
	}
	if button == nil {
		dto.FromError(c, apperrors.ErrNotFound.WithDetail("speed button "+id))
		return
	}
	req.ApplyTo(button)
	if err := h.repo.Update(ctx, button); err != nil {
		dto.FromError(c, dbError(err, "failed to update speed button"))
		return
	}
	dto.Success(c, button)
}

// @Router /v1/speed-buttons/{id} [delete]
func (h *SpeedButtonHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), dto.BindID(c)); err != nil {
		dto.FromError(c, dbError(err, "failed to delete speed button"))
		return
	}
	dto.NoContent(c)
}
