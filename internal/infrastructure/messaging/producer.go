package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyteller-api/internal/config"
	"storyteller-api/pkg/logger"
	"storyteller-api/pkg/tracer"
)

var msgTracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, cfg *config.Config) *Producer {
	maxLen := int64(cfg.Messaging.RedisStream.MaxLen)
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := msgTracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	// 透传链路信息，消费端据此关联日志
	if traceID := tracer.TraceID(ctx); traceID != "" {
		msg.SetMetadata(MetaTraceID, traceID)
	}
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		msg.SetMetadata(MetaRequestID, reqID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishAudioJob 发布剧集语音合成任务
func (p *Producer) PublishAudioJob(ctx context.Context, job *AudioJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, MessageTypeEpisodeAudio, job)
	if err != nil {
		return "", err
	}
	msg.StoryID = job.StoryID
	msg.EpisodeID = job.EpisodeID
	return p.Publish(ctx, StreamEpisodeAudio, msg)
}
