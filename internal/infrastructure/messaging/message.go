// Package messaging 基于 Redis Streams 的语音任务队列
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 消息元数据键，用于在 worker 端恢复请求与链路上下文
const (
	MetaRequestID = "request_id"
	MetaTraceID   = "trace_id"
)

// Message 流中 data 字段的 JSON 信封
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	StoryID   string            `json:"story_id,omitempty"`
	EpisodeID string            `json:"episode_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 序列化载荷并封装
func NewMessage(id, msgType string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return &Message{ID: id, Type: msgType, Payload: raw, CreatedAt: time.Now()}, nil
}

func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string, 2)
	}
	m.Metadata[key] = value
}

// GetMetadata 不存在时返回空串
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// ErrInvalidAudioJob 语音任务缺少剧集 id，重试无意义
var ErrInvalidAudioJob = errors.New("audio job has no episode id")

// AudioJob 解析语音任务载荷
func (m *Message) AudioJob() (*AudioJobMessage, error) {
	if m.Type != MessageTypeEpisodeAudio {
		return nil, fmt.Errorf("unexpected message type %q", m.Type)
	}
	var job AudioJobMessage
	if err := m.UnmarshalPayload(&job); err != nil {
		return nil, fmt.Errorf("failed to decode audio job: %w", err)
	}
	if job.EpisodeID == "" {
		return nil, ErrInvalidAudioJob
	}
	if job.JobID == "" {
		job.JobID = m.ID
	}
	return &job, nil
}

// Stream 流定义
type Stream string

const (
	StreamEpisodeAudio Stream = "storyteller:stream:episode:audio"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupAudioWorker ConsumerGroup = "cg-audio-worker"
)

// 消息类型
const (
	MessageTypeEpisodeAudio = "episode_audio"
)

// AudioJobMessage 剧集语音合成任务
type AudioJobMessage struct {
	JobID      string `json:"job_id"`
	StoryID    string `json:"story_id"`
	EpisodeID  string `json:"episode_id"`
	ProviderID string `json:"provider_id,omitempty"`
	Voice      string `json:"voice,omitempty"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算第 retryCount 次重试前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
