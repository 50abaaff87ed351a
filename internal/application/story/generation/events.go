// Package generation 编排单集生成：状态切换、流式输出、修复、标题摘要与持久化
package generation

import (
	"encoding/json"
)

// 事件名称
const (
	EventStart    = "start"
	EventToken    = "token"
	EventSentence = "sentence"
	EventComplete = "complete"
	EventError    = "error"
)

// Event 生成过程事件
type Event interface {
	// Name 事件名称，即 SSE 的 event 字段
	Name() string
	// Encode 编码为 {event, data, episode_id} JSON
	Encode() ([]byte, error)

	sealed()
}

// envelope 线上格式
type envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	EpisodeID string `json:"episode_id,omitempty"`
}

func encode(name string, data any, episodeID string) ([]byte, error) {
	return json.Marshal(envelope{Event: name, Data: data, EpisodeID: episodeID})
}

// StartEvent 占位剧集已创建
type StartEvent struct {
	EpisodeID string
}

func (StartEvent) Name() string { return EventStart }

func (e StartEvent) Encode() ([]byte, error) {
	return encode(EventStart, e.EpisodeID, e.EpisodeID)
}

func (StartEvent) sealed() {}

// TokenEvent 模型输出的增量文本
type TokenEvent struct {
	Text string
}

func (TokenEvent) Name() string { return EventToken }

func (e TokenEvent) Encode() ([]byte, error) {
	return encode(EventToken, e.Text, "")
}

func (TokenEvent) sealed() {}

// SentenceEvent 完整句子，供语音播放使用
type SentenceEvent struct {
	Text string
}

func (SentenceEvent) Name() string { return EventSentence }

func (e SentenceEvent) Encode() ([]byte, error) {
	return encode(EventSentence, e.Text, "")
}

func (SentenceEvent) sealed() {}

// CompletePayload 完成事件数据
type CompletePayload struct {
	EpisodeID string `json:"episode_id"`
	Title     string `json:"title"`
	WordCount int    `json:"word_count"`
}

// CompleteEvent 剧集已持久化
type CompleteEvent struct {
	EpisodeID string
	Title     string
	WordCount int
}

func (CompleteEvent) Name() string { return EventComplete }

func (e CompleteEvent) Encode() ([]byte, error) {
	return encode(EventComplete, CompletePayload{
		EpisodeID: e.EpisodeID,
		Title:     e.Title,
		WordCount: e.WordCount,
	}, e.EpisodeID)
}

func (CompleteEvent) sealed() {}

// ErrorEvent 生成失败，EpisodeID 在占位创建前失败时为空
type ErrorEvent struct {
	EpisodeID string
	Message   string
}

func (ErrorEvent) Name() string { return EventError }

func (e ErrorEvent) Encode() ([]byte, error) {
	return encode(EventError, e.Message, e.EpisodeID)
}

func (ErrorEvent) sealed() {}
