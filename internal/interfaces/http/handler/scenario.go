package handler

import (
	"github.com/gin-gonic/gin"

	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
)

// ScenarioHandler 场景处理器
type ScenarioHandler struct {
	repo repository.ScenarioRepository
}

// NewScenarioHandler 创建场景处理器
func NewScenarioHandler(repo repository.ScenarioRepository) *ScenarioHandler {
	return &ScenarioHandler{repo: repo}
}

// List 获取场景列表
// @Summary 获取场景列表
// @Tags Scenarios
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Router /v1/scenarios [get]
func (h *ScenarioHandler) List(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.repo.List(c.Request.Context(), page.Pagination())
	if err != nil {
		dto.FromError(c, dbError(err, "failed to list scenarios"))
		return
	}
	dto.SuccessWithPage(c, result.Items, dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// Create 创建场景
// @Summary 创建场景
// @Tags Scenarios
// @Accept json
// @Produce json
// @Param body body dto.CreateScenarioRequest true "场景信息"
// @Router /v1/scenarios [post]
func (h *ScenarioHandler) Create(c *gin.Context) {
	var req dto.CreateScenarioRequest
	if !bindJSON(c, &req) {
		return
	}
	scenario := req.ToEntity()
	if err := h.repo.Create(c.Request.Context(), scenario); err != nil {
		dto.FromError(c, dbError(err, "failed to create scenario"))
		return
	}
	dto.Created(c, scenario)
}

// Get 获取场景详情
// @Summary 获取场景详情
// @Tags Scenarios
// @Produce json
// @Param id path string true "场景 ID"
// @Router /v1/scenarios/{id} [get]
func (h *ScenarioHandler) Get(c *gin.Context) {
	id := dto.BindID(c)
	scenario, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get scenario"))
		return
	}
	if scenario == nil {
		dto.FromError(c, apperrors.ErrScenarioNotFound.WithDetail(id))
		return
	}
	dto.Success(c, scenario)
}

// Update 更新场景
// @Summary 更新场景
// @Tags Scenarios
// @Accept json
// @Produce json
// @Param id path string true "场景 ID"
// @Param body body dto.UpdateScenarioRequest true "更新内容"
// @Router /v1/scenarios/{id} [put]
func (h *ScenarioHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := dto.BindID(c)

	var req dto.UpdateScenarioRequest
	if !bindJSON(c, &req) {
		return
	}
	scenario, err := h.repo.GetByID(ctx, id)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get scenario"))
		return
	}
	if scenario == nil {
		dto.FromError(c, apperrors.ErrScenarioNotFound.WithDetail(id))
		return
	}

	req.ApplyTo(scenario)
	if err := h.repo.Update(ctx, scenario); err != nil {
		dto.FromError(c, dbError(err, "failed to update scenario"))
		return
	}
	dto.Success(c, scenario)
}

// Delete 删除场景
// @Summary 删除场景
// @Tags Scenarios
// @Param id path string true "场景 ID"
// @Success 204 "No Content"
// @Router /v1/scenarios/{id} [delete]
func (h *ScenarioHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), dto.BindID(c)); err != nil {
		dto.FromError(c, dbError(err, "failed to delete scenario"))
		return
	}
	dto.NoContent(c)
}
