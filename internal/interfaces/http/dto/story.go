package dto

import (
	"fmt"
	"time"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	apperrors "storyteller-api/pkg/errors"
)

// StorySettingsRequest 故事生成设置，零值表示使用默认值
type StorySettingsRequest struct {
	TargetWordPreset entity.WordPreset   `json:"target_word_preset,omitempty"`
	Temperature      *float64            `json:"temperature,omitempty"`
	WritingStyle     entity.WritingStyle `json:"writing_style,omitempty"`
	Mood             entity.Mood         `json:"mood,omitempty"`
	Pacing           entity.Pacing       `json:"pacing,omitempty"`
}

// Validate 校验设置取值
func (r *StorySettingsRequest) Validate() error {
	switch {
	case r.TargetWordPreset != "" && !r.TargetWordPreset.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid target_word_preset: " + string(r.TargetWordPreset))
	case r.WritingStyle != "" && !r.WritingStyle.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid writing_style: " + string(r.WritingStyle))
	case r.Mood != "" && !r.Mood.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid mood: " + string(r.Mood))
	case r.Pacing != "" && !r.Pacing.IsValid():
		return apperrors.ErrInvalidParam.WithDetail("invalid pacing: " + string(r.Pacing))
	case r.Temperature != nil && (*r.Temperature < entity.MinTemperature || *r.Temperature > entity.MaxTemperature):
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("temperature must be within [%.1f, %.1f]", entity.MinTemperature, entity.MaxTemperature))
	}
	return nil
}

// ApplyTo 写入非零设置
func (r *StorySettingsRequest) ApplyTo(s *entity.Story) {
	if r.TargetWordPreset != "" {
		s.TargetWordPreset = r.TargetWordPreset
	}
	if r.Temperature != nil {
		s.Temperature = *r.Temperature
	}
	if r.WritingStyle != "" {
		s.WritingStyle = r.WritingStyle
	}
	if r.Mood != "" {
		s.Mood = r.Mood
	}
	if r.Pacing != "" {
		s.Pacing = r.Pacing
	}
}

// CreateStoryRequest 创建故事请求
type CreateStoryRequest struct {
	Title      string `json:"title" binding:"required,max=255"`
	ScenarioID string `json:"scenario_id" binding:"required"`
	StorySettingsRequest
}

// UpdateStoryRequest 更新故事请求
type UpdateStoryRequest struct {
	Title  *string             `json:"title,omitempty" binding:"omitempty,min=1,max=255"`
	Status *entity.StoryStatus `json:"status,omitempty"`
	StorySettingsRequest
}

// Validate 校验更新内容
func (r *UpdateStoryRequest) Validate() error {
	if r.Status != nil && !r.Status.IsValid() {
		return apperrors.ErrInvalidParam.WithDetail("invalid status: " + string(*r.Status))
	}
	return r.StorySettingsRequest.Validate()
}

// ApplyTo 应用更新
func (r *UpdateStoryRequest) ApplyTo(s *entity.Story) {
	if r.Title != nil {
		s.Title = *r.Title
	}
	if r.Status != nil {
		s.Status = *r.Status
	}
	r.StorySettingsRequest.ApplyTo(s)
}

// StoryListQuery 故事列表过滤
type StoryListQuery struct {
	Status     entity.StoryStatus `form:"status"`
	ScenarioID string             `form:"scenario_id"`
	RootsOnly  bool               `form:"roots_only"`
}

// Filter 转为仓储过滤条件
func (q *StoryListQuery) Filter() *repository.StoryFilter {
	return &repository.StoryFilter{Status: q.Status, ScenarioID: q.ScenarioID, RootsOnly: q.RootsOnly}
}

// ForkStoryRequest 分叉请求
type ForkStoryRequest struct {
	FromEpisode int    `json:"from_episode" binding:"required"`
	Title       string `json:"title" binding:"max=255"`
}

// StoryResponse 故事响应
type StoryResponse struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	ScenarioID       string              `json:"scenario_id"`
	Status           entity.StoryStatus  `json:"status"`
	TargetWordPreset entity.WordPreset   `json:"target_word_preset"`
	Temperature      float64             `json:"temperature"`
	WritingStyle     entity.WritingStyle `json:"writing_style"`
	Mood             entity.Mood         `json:"mood"`
	Pacing           entity.Pacing       `json:"pacing"`
	ParentStoryID    *string             `json:"parent_story_id,omitempty"`
	ForkFromEpisode  *int                `json:"fork_from_episode,omitempty"`
	IsFork           bool                `json:"is_fork"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ToStoryResponse 将领域实体转换为响应 DTO
func ToStoryResponse(s *entity.Story) *StoryResponse {
	if s == nil {
		return nil
	}
	return &StoryResponse{
		ID:               s.ID,
		Title:            s.Title,
		ScenarioID:       s.ScenarioID,
		Status:           s.Status,
		TargetWordPreset: s.TargetWordPreset,
		Temperature:      s.Temperature,
		WritingStyle:     s.WritingStyle,
		Mood:             s.Mood,
		Pacing:           s.Pacing,
		ParentStoryID:    s.ParentStoryID,
		ForkFromEpisode:  s.ForkFromEpisode,
		IsFork:           s.IsFork(),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// ToStoryListResponse 转换故事列表
func ToStoryListResponse(items []*entity.Story) []*StoryResponse {
	out := make([]*StoryResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToStoryResponse(s))
	}
	return out
}
