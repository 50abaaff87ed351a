package entity

import (
	"time"

	"github.com/google/uuid"
)

// StoryStatus 故事状态
type StoryStatus string

const (
	StoryStatusDraft      StoryStatus = "draft"
	StoryStatusInProgress StoryStatus = "in_progress"
	StoryStatusCompleted  StoryStatus = "completed"
	StoryStatusAbandoned  StoryStatus = "abandoned"
)

// IsValid 校验故事状态
func (s StoryStatus) IsValid() bool {
	switch s {
	case StoryStatusDraft, StoryStatusInProgress, StoryStatusCompleted, StoryStatusAbandoned:
		return true
	}
	return false
}

// WordPreset 目标篇幅档位
type WordPreset string

const (
	WordPresetShort  WordPreset = "short"
	WordPresetMedium WordPreset = "medium"
	WordPresetLong   WordPreset = "long"
	WordPresetEpic   WordPreset = "epic"
)

// IsValid 校验篇幅档位
func (p WordPreset) IsValid() bool {
	switch p {
	case WordPresetShort, WordPresetMedium, WordPresetLong, WordPresetEpic:
		return true
	}
	return false
}

// WritingStyle 写作风格
type WritingStyle string

const (
	WritingStyleDescriptive WritingStyle = "descriptive"
	WritingStyleAction      WritingStyle = "action"
	WritingStyleDialogue    WritingStyle = "dialogue"
	WritingStyleBalanced    WritingStyle = "balanced"
)

// IsValid 校验写作风格
func (s WritingStyle) IsValid() bool {
	switch s {
	case WritingStyleDescriptive, WritingStyleAction, WritingStyleDialogue, WritingStyleBalanced:
		return true
	}
	return false
}

// Mood 情绪基调
type Mood string

const (
	MoodLight    Mood = "light"
	MoodModerate Mood = "moderate"
	MoodIntense  Mood = "intense"
	MoodDark     Mood = "dark"
)

// IsValid 校验情绪基调
func (m Mood) IsValid() bool {
	switch m {
	case MoodLight, MoodModerate, MoodIntense, MoodDark:
		return true
	}
	return false
}

// Pacing 叙事节奏
type Pacing string

const (
	PacingSlow     Pacing = "slow"
	PacingModerate Pacing = "moderate"
	PacingFast     Pacing = "fast"
)

// IsValid 校验叙事节奏
func (p Pacing) IsValid() bool {
	switch p {
	case PacingSlow, PacingModerate, PacingFast:
		return true
	}
	return false
}

// 故事生成设置的默认值与取值范围
const (
	DefaultWordPreset   = WordPresetMedium
	DefaultTemperature  = 0.7
	DefaultWritingStyle = WritingStyleBalanced
	DefaultMood         = MoodModerate
	DefaultPacing       = PacingModerate

	MinTemperature = 0.5
	MaxTemperature = 1.0
)

// Story 故事实体
type Story struct {
	ID               string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title            string       `json:"title" gorm:"type:varchar(255);not null"`
	ScenarioID       string       `json:"scenario_id" gorm:"type:uuid;index;not null"`
	Status           StoryStatus  `json:"status" gorm:"type:varchar(32);default:'draft'"`
	TargetWordPreset WordPreset   `json:"target_word_preset" gorm:"type:varchar(16);default:'medium'"`
	Temperature      float64      `json:"temperature" gorm:"default:0.7"`
	WritingStyle     WritingStyle `json:"writing_style" gorm:"type:varchar(32);default:'balanced'"`
	Mood             Mood         `json:"mood" gorm:"type:varchar(32);default:'moderate'"`
	Pacing           Pacing       `json:"pacing" gorm:"type:varchar(32);default:'moderate'"`
	ParentStoryID    *string      `json:"parent_story_id,omitempty" gorm:"type:uuid;index"`
	ForkFromEpisode  *int         `json:"fork_from_episode,omitempty"`
	CreatedAt        time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}

// NewStory 创建新故事，生成设置取默认值
func NewStory(title, scenarioID string) *Story {
	return &Story{
		ID:               uuid.NewString(),
		Title:            title,
		ScenarioID:       scenarioID,
		Status:           StoryStatusDraft,
		TargetWordPreset: DefaultWordPreset,
		Temperature:      DefaultTemperature,
		WritingStyle:     DefaultWritingStyle,
		Mood:             DefaultMood,
		Pacing:           DefaultPacing,
	}
}

// IsFork 是否为分支故事
func (s *Story) IsFork() bool {
	return s.ParentStoryID != nil
}
