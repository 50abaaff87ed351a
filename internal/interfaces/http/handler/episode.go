package handler

import (
	"github.com/gin-gonic/gin"

	"storyteller-api/internal/application/story/episode"
	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
)

// EpisodeHandler 剧集处理器
type EpisodeHandler struct {
	episodes *episode.Service
}

// NewEpisodeHandler 创建剧集处理器
func NewEpisodeHandler(episodes *episode.Service) *EpisodeHandler {
	return &EpisodeHandler{episodes: episodes}
}

// List 获取故事的已完成剧集，不含正文
// @Summary 剧集列表
// @Tags Episodes
// @Produce json
// @Param id path string true "故事 ID"
// @Router /v1/stories/{id}/episodes [get]
func (h *EpisodeHandler) List(c *gin.Context) {
	eps, err := h.episodes.List(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToEpisodeSummaries(eps))
}

// Get 获取单集完整内容
// @Router /v1/stories/{id}/episodes/{number} [get]
func (h *EpisodeHandler) Get(c *gin.Context) {
	number, ok := dto.BindEpisodeNumber(c)
	if !ok {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail("episode number must be a positive integer"))
		return
	}
	ep, err := h.episodes.Get(c.Request.Context(), dto.BindID(c), number)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, ep)
}

// Delete 删除最后一集
// @Router /v1/stories/{id}/episodes/{number} [delete]
func (h *EpisodeHandler) Delete(c *gin.Context) {
	number, ok := dto.BindEpisodeNumber(c)
	if !ok {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail("episode number must be a positive integer"))
		return
	}
	if err := h.episodes.DeleteLast(c.Request.Context(), dto.BindID(c), number); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}
