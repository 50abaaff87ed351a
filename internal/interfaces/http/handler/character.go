package handler

import (
	"github.com/gin-gonic/gin"

	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
)

// CharacterHandler 角色处理器
type CharacterHandler struct {
	repo repository.CharacterRepository
}

// NewCharacterHandler 创建角色处理器
func NewCharacterHandler(repo repository.CharacterRepository) *CharacterHandler {
	return &CharacterHandler{repo: repo}
}

// List 获取角色列表
// @Router /v1/characters [get]
func (h *CharacterHandler) List(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.repo.List(c.Request.Context(), page.Pagination())
	if err != nil {
		dto.FromError(c, dbError(err, "failed to list characters"))
		return
	}
	dto.SuccessWithPage(c, result.Items, dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// Create 创建角色
// @Router /v1/characters [post]
func (h *CharacterHandler) Create(c *gin.Context) {
	var req dto.CreateCharacterRequest
	if !bindJSON(c, &req) {
		return
	}
	character := req.ToEntity()
	if err := h.repo.Create(c.Request.Context(), character); err != nil {
		dto.FromError(c, dbError(err, "failed to create character"))
		return
	}
	dto.Created(c, character)
}

// Get 获取角色详情
// @Router /v1/characters/{id} [get]
func (h *CharacterHandler) Get(c *gin.Context) {
	id := dto.BindID(c)
	character, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get character"))
		return
	}
	if character == nil {
		dto.FromError(c, apperrors.ErrNotFound.WithDetail("character "+id))
		return
	}
	dto.Success(c, character)
}

// Update 更新角色
// @Router /v1/characters/{id} [put]
func (h *CharacterHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := dto.BindID(c)

	var req dto.UpdateCharacterRequest
	if !bindJSON(c, &req) {
		return
	}
	character, err := h.repo.GetByID(ctx, id)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get character"))
		return
	}
	if character == nil {
		dto.FromError(c, apperrors.ErrNotFound.WithDetail("character "+id))
		return
	}

	req.ApplyTo(character)
	if err := h.repo.Update(ctx, character); err != nil {
		dto.FromError(c, dbError(err, "failed to update character"))
		return
	}
	dto.Success(c, character)
}

// Delete 删除角色，同时移出所有故事
// @Router /v1/characters/{id} [delete]
func (h *CharacterHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), dto.BindID(c)); err != nil {
		dto.FromError(c, dbError(err, "failed to delete character"))
		return
	}
	dto.NoContent(c)
}
