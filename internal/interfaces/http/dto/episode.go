package dto

import (
	"time"

	"storyteller-api/internal/domain/entity"
)

// EpisodeSummaryResponse 剧集列表项，不含正文
type EpisodeSummaryResponse struct {
	ID        string    `json:"id"`
	Number    int       `json:"episode_number"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	WordCount int       `json:"word_count"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToEpisodeSummaries 转换剧集列表
func ToEpisodeSummaries(eps []*entity.Episode) []*EpisodeSummaryResponse {
	out := make([]*EpisodeSummaryResponse, 0, len(eps))
	for _, ep := range eps {
		out = append(out, &EpisodeSummaryResponse{
			ID:        ep.ID,
			Number:    ep.Number,
			Title:     ep.DisplayTitle(),
			Summary:   ep.Summary,
			WordCount: ep.WordCount,
			AudioURL:  ep.AudioURL,
			CreatedAt: ep.CreatedAt,
		})
	}
	return out
}

// AudioRequest 语音合成请求，字段均可省略
type AudioRequest struct {
	ProviderID string `json:"provider_id"`
	Voice      string `json:"voice" binding:"max=255"`
}

// AudioJobResponse 语音任务入队结果
type AudioJobResponse struct {
	JobID     string `json:"job_id"`
	EpisodeID string `json:"episode_id"`
}

// SpeakRequest 即时合成请求
type SpeakRequest struct {
	Text       string  `json:"text" binding:"required"`
	Voice      string  `json:"voice" binding:"max=255"`
	ProviderID string  `json:"provider_id"`
	Speed      float64 `json:"speed"`
}

// SpeakResponse 即时合成结果
type SpeakResponse struct {
	AudioURL string `json:"audio_url"`
}
