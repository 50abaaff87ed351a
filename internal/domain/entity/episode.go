package entity

import (
	"time"

	"github.com/google/uuid"
)

// UntitledEpisode 标题缺省占位
const UntitledEpisode = "Untitled"

// Episode 剧集实体；先以空占位插入，生成完成后原地填充
type Episode struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID   string    `json:"story_id" gorm:"type:uuid;not null;uniqueIndex:idx_episode_story_number"`
	Number    int       `json:"episode_number" gorm:"column:episode_number;not null;uniqueIndex:idx_episode_story_number"`
	Title     string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	Content   string    `json:"content" gorm:"type:text"`
	Summary   string    `json:"summary,omitempty" gorm:"type:text"`
	Guidance  string    `json:"guidance,omitempty" gorm:"type:text"`
	WordCount int       `json:"word_count" gorm:"default:0"`
	AudioURL  string    `json:"audio_url,omitempty" gorm:"type:varchar(512)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Episode) TableName() string {
	return "episodes"
}

// NewEpisodePlaceholder 创建空剧集占位
func NewEpisodePlaceholder(storyID string, number int, guidance string) *Episode {
	return &Episode{
		ID:       uuid.NewString(),
		StoryID:  storyID,
		Number:   number,
		Guidance: guidance,
	}
}

// DisplayTitle 返回用于渲染的标题
func (e *Episode) DisplayTitle() string {
	if e.Title == "" {
		return UntitledEpisode
	}
	return e.Title
}

// CloneFor 复制剧集到另一个故事，保留编号与全部内容
func (e *Episode) CloneFor(storyID string) *Episode {
	return &Episode{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		Number:    e.Number,
		Title:     e.Title,
		Content:   e.Content,
		Summary:   e.Summary,
		Guidance:  e.Guidance,
		WordCount: e.WordCount,
		AudioURL:  e.AudioURL,
	}
}
