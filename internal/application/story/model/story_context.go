// Package model 定义 story 应用层各组件之间传递的数据结构。
package model

import "storyteller-api/internal/domain/entity"

// ScenarioContext 场景字段，原样取自 Scenario
type ScenarioContext struct {
	Name       string   `json:"name"`
	Setting    string   `json:"setting"`
	TimePeriod string   `json:"time_period"`
	Genre      string   `json:"genre"`
	Tone       string   `json:"tone"`
	Premise    string   `json:"premise"`
	Themes     []string `json:"themes"`
	WorldRules []string `json:"world_rules"`
}

// NewScenarioContext 从场景实体构建
func NewScenarioContext(s *entity.Scenario) ScenarioContext {
	if s == nil {
		return ScenarioContext{}
	}
	return ScenarioContext{
		Name:       s.Name,
		Setting:    s.Setting,
		TimePeriod: s.TimePeriod,
		Genre:      s.Genre,
		Tone:       s.Tone,
		Premise:    s.Premise,
		Themes:     append([]string(nil), s.Themes...),
		WorldRules: append([]string(nil), s.WorldRules...),
	}
}

// StoryContext 一次生成所需的完整上下文。
// 三层记忆均已按时间正序渲染；快照保存时原样写入，保证与模型实际看到的一致。
type StoryContext struct {
	StoryID    string                  `json:"story_id"`
	Scenario   ScenarioContext         `json:"scenario"`
	Characters []entity.CharacterState `json:"characters"`

	ActiveMemory     string `json:"active_memory"`
	BackgroundMemory string `json:"background_memory"`
	FadedMemory      string `json:"faded_memory"`

	// ActiveEpisodes 活跃层实际包含的剧集数
	ActiveEpisodes    int `json:"active_episodes"`
	EpisodeCount      int `json:"episode_count"`
	NextEpisodeNumber int `json:"next_episode_number"`
}

// IsFirstEpisode 是否为故事的第一集
func (c *StoryContext) IsFirstEpisode() bool {
	return c.NextEpisodeNumber <= 1
}

// HasMemory 是否存在任何记忆层内容
func (c *StoryContext) HasMemory() bool {
	return c.ActiveMemory != "" || c.BackgroundMemory != "" || c.FadedMemory != ""
}
