package handler

import (
	"github.com/gin-gonic/gin"

	"storyteller-api/internal/application/story/lineage"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
)

// StoryHandler 故事、角色表与分支处理器
type StoryHandler struct {
	stories    repository.StoryRepository
	scenarios  repository.ScenarioRepository
	characters repository.CharacterRepository
	lineage    *lineage.Manager
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(
	stories repository.StoryRepository,
	scenarios repository.ScenarioRepository,
	characters repository.CharacterRepository,
	lineageManager *lineage.Manager,
) *StoryHandler {
	return &StoryHandler{
		stories:    stories,
		scenarios:  scenarios,
		characters: characters,
		lineage:    lineageManager,
	}
}

// List 获取故事列表
// @Summary 获取故事列表
// @Tags Stories
// @Produce json
// @Param status query string false "状态过滤"
// @Param scenario_id query string false "场景过滤"
// @Param roots_only query bool false "只返回非分支故事"
// @Router /v1/stories [get]
func (h *StoryHandler) List(c *gin.Context) {
	var q dto.StoryListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		dto.BadRequest(c, "invalid query: "+err.Error())
		return
	}
	page := dto.BindPage(c)

	result, err := h.stories.List(c.Request.Context(), q.Filter(), page.Pagination())
	if err != nil {
		dto.FromError(c, dbError(err, "failed to list stories"))
		return
	}
	dto.SuccessWithPage(c, dto.ToStoryListResponse(result.Items), dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// Create 创建故事
// @Summary 创建故事
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.CreateStoryRequest true "故事信息"
// @Router /v1/stories [post]
func (h *StoryHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStoryRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		dto.FromError(c, err)
		return
	}

	scenario, err := h.scenarios.GetByID(ctx, req.ScenarioID)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get scenario"))
		return
	}
	if scenario == nil {
		dto.FromError(c, apperrors.ErrScenarioNotFound.WithDetail(req.ScenarioID))
		return
	}

	story := entity.NewStory(req.Title, scenario.ID)
	req.StorySettingsRequest.ApplyTo(story)
	if err := h.stories.Create(ctx, story); err != nil {
		dto.FromError(c, dbError(err, "failed to create story"))
		return
	}
	dto.Created(c, dto.ToStoryResponse(story))
}

// Get 获取故事详情
// @Router /v1/stories/{id} [get]
func (h *StoryHandler) Get(c *gin.Context) {
	story, err := h.load(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(story))
}

// Update 更新故事标题、状态或生成设置
// @Router /v1/stories/{id} [put]
func (h *StoryHandler) Update(c *gin.Context) {
	var req dto.UpdateStoryRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		dto.FromError(c, err)
		return
	}

	story, err := h.load(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	req.ApplyTo(story)
	if err := h.stories.Update(c.Request.Context(), story); err != nil {
		dto.FromError(c, dbError(err, "failed to update story"))
		return
	}
	if req.Title != nil {
		h.lineage.InvalidateTree(c.Request.Context(), story.ID)
	}
	dto.Success(c, dto.ToStoryResponse(story))
}

// Delete 删除故事；其分支成为新的根故事
// @Router /v1/stories/{id} [delete]
func (h *StoryHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	story, err := h.load(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	// 删除后无法再沿父链定位根节点，先失效
	h.lineage.InvalidateTree(ctx, story.ID)
	if err := h.stories.Delete(ctx, story.ID); err != nil {
		dto.FromError(c, dbError(err, "failed to delete story"))
		return
	}
	dto.NoContent(c)
}

// ListCharacters 获取故事角色表
// @Router /v1/stories/{id}/characters [get]
func (h *StoryHandler) ListCharacters(c *gin.Context) {
	story, err := h.load(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	cast, err := h.characters.ListCast(c.Request.Context(), story.ID)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to list characters"))
		return
	}
	dto.Success(c, dto.ToCastResponse(cast))
}

// AddCharacter 将角色加入故事，重复加入时更新定位
// @Router /v1/stories/{id}/characters [post]
func (h *StoryHandler) AddCharacter(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AttachCharacterRequest
	if !bindJSON(c, &req) {
		return
	}
	role := req.Role
	if role == "" {
		role = entity.CharacterRoleSupporting
	}
	if !role.IsValid() {
		dto.FromError(c, apperrors.ErrInvalidParam.WithDetail("invalid role: "+string(role)))
		return
	}

	story, err := h.load(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	character, err := h.characters.GetByID(ctx, req.CharacterID)
	if err != nil {
		dto.FromError(c, dbError(err, "failed to get character"))
		return
	}
	if character == nil {
		dto.FromError(c, apperrors.ErrNotFound.WithDetail("character "+req.CharacterID))
		return
	}

	link := &entity.StoryCharacter{StoryID: story.ID, CharacterID: character.ID, Role: role}
	if err := h.characters.Attach(ctx, link); err != nil {
		dto.FromError(c, dbError(err, "failed to add character"))
		return
	}
	dto.Created(c, &dto.CastMemberResponse{Character: character, Role: role})
}

// RemoveCharacter 从故事移除角色
// @Router /v1/stories/{id}/characters/{characterId} [delete]
func (h *StoryHandler) RemoveCharacter(c *gin.Context) {
	story, err := h.load(c)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if err := h.characters.Detach(c.Request.Context(), story.ID, c.Param("characterId")); err != nil {
		dto.FromError(c, dbError(err, "failed to remove character"))
		return
	}
	dto.NoContent(c)
}

// Fork 从指定剧集分叉出新故事
// @Summary 分叉故事
// @Tags Lineage
// @Accept json
// @Produce json
// @Param id path string true "故事 ID"
// @Param body body dto.ForkStoryRequest true "分叉点"
// @Router /v1/stories/{id}/fork [post]
func (h *StoryHandler) Fork(c *gin.Context) {
	var req dto.ForkStoryRequest
	if !bindJSON(c, &req) {
		return
	}
	forked, err := h.lineage.Fork(c.Request.Context(), dto.BindID(c), req.FromEpisode, req.Title)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.ToStoryResponse(forked))
}

// Tree 获取故事所在谱系树
// @Summary 谱系树
// @Tags Lineage
// @Produce json
// @Param id path string true "故事 ID"
// @Router /v1/stories/{id}/tree [get]
func (h *StoryHandler) Tree(c *gin.Context) {
	tree, err := h.lineage.Tree(c.Request.Context(), dto.BindID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, tree)
}

func (h *StoryHandler) load(c *gin.Context) (*entity.Story, error) {
	id := dto.BindID(c)
	story, err := h.stories.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil, dbError(err, "failed to get story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound.WithDetail(id)
	}
	return story, nil
}
