package entity

import (
	"time"

	"github.com/google/uuid"
)

// CharacterState 快照中的角色状态
type CharacterState struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description,omitempty"`
	Personality string `json:"personality,omitempty"`
	Motivations string `json:"motivations,omitempty"`
	Backstory   string `json:"backstory,omitempty"`
}

// MemoryState 每个已完成剧集对应的记忆快照，创建后不再修改
type MemoryState struct {
	ID               string           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID          string           `json:"story_id" gorm:"type:uuid;index;not null"`
	EpisodeID        string           `json:"episode_id" gorm:"type:uuid;index;not null"`
	EpisodeNumber    int              `json:"episode_number" gorm:"not null"`
	ActiveMemory     string           `json:"active_memory" gorm:"type:text"`
	BackgroundMemory string           `json:"background_memory" gorm:"type:text"`
	FadedMemory      string           `json:"faded_memory" gorm:"type:text"`
	CharacterStates  []CharacterState `json:"character_states" gorm:"type:jsonb;serializer:json"`
	PlotThreads      []string         `json:"plot_threads" gorm:"type:jsonb;serializer:json"`
	CreatedAt        time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (MemoryState) TableName() string {
	return "memory_states"
}

// CloneFor 复制快照并指向新的故事与剧集
func (m *MemoryState) CloneFor(storyID, episodeID string) *MemoryState {
	cp := *m
	cp.ID = uuid.NewString()
	cp.StoryID = storyID
	cp.EpisodeID = episodeID
	cp.CreatedAt = time.Time{}
	cp.CharacterStates = append([]CharacterState(nil), m.CharacterStates...)
	cp.PlotThreads = append([]string(nil), m.PlotThreads...)
	return &cp
}
