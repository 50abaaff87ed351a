package dto

import (
	"github.com/lib/pq"

	"storyteller-api/internal/domain/entity"
)

// CreateScenarioRequest 创建场景请求
type CreateScenarioRequest struct {
	Name       string   `json:"name" binding:"required,max=255"`
	Setting    string   `json:"setting" binding:"max=20000"`
	TimePeriod string   `json:"time_period" binding:"max=255"`
	Genre      string   `json:"genre" binding:"max=100"`
	Tone       string   `json:"tone" binding:"max=100"`
	Premise    string   `json:"premise" binding:"max=20000"`
	Themes     []string `json:"themes"`
	WorldRules []string `json:"world_rules"`
}

// ToEntity 转换为场景实体
func (r *CreateScenarioRequest) ToEntity() *entity.Scenario {
	s := entity.NewScenario(r.Name, r.Setting)
	s.TimePeriod = r.TimePeriod
	s.Genre = r.Genre
	s.Tone = r.Tone
	s.Premise = r.Premise
	if r.Themes != nil {
		s.Themes = pq.StringArray(r.Themes)
	}
	if r.WorldRules != nil {
		s.WorldRules = pq.StringArray(r.WorldRules)
	}
	return s
}

// UpdateScenarioRequest 更新场景请求
type UpdateScenarioRequest struct {
	Name       *string  `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Setting    *string  `json:"setting,omitempty" binding:"omitempty,max=20000"`
	TimePeriod *string  `json:"time_period,omitempty" binding:"omitempty,max=255"`
	Genre      *string  `json:"genre,omitempty" binding:"omitempty,max=100"`
	Tone       *string  `json:"tone,omitempty" binding:"omitempty,max=100"`
	Premise    *string  `json:"premise,omitempty" binding:"omitempty,max=20000"`
	Themes     []string `json:"themes,omitempty"`
	WorldRules []string `json:"world_rules,omitempty"`
}

// ApplyTo 应用更新
func (r *UpdateScenarioRequest) ApplyTo(s *entity.Scenario) {
	if r.Name != nil {
		s.Name = *r.Name
	}
	if r.Setting != nil {
		s.Setting = *r.Setting
	}
	if r.TimePeriod != nil {
		s.TimePeriod = *r.TimePeriod
	}
	if r.Genre != nil {
		s.Genre = *r.Genre
	}
	if r.Tone != nil {
		s.Tone = *r.Tone
	}
	if r.Premise != nil {
		s.Premise = *r.Premise
	}
	if r.Themes != nil {
		s.Themes = pq.StringArray(r.Themes)
	}
	if r.WorldRules != nil {
		s.WorldRules = pq.StringArray(r.WorldRules)
	}
}
