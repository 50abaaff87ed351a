package redis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyteller-api/internal/config"
	"storyteller-api/pkg/logger"
)

// ProviderInvalidationBus 通过 Redis pub/sub 广播 provider 缓存失效
type ProviderInvalidationBus struct {
	client  *Client
	channel string
}

// NewProviderInvalidationBus 创建失效广播通道
func NewProviderInvalidationBus(client *Client, cfg *config.Config) *ProviderInvalidationBus {
	return &ProviderInvalidationBus{client: client, channel: cfg.LLM.InvalidationChannel}
}

// Publish 广播 provider 失效
func (b *ProviderInvalidationBus) Publish(ctx context.Context, providerID string) error {
	ctx, span := tracer.Start(ctx, "redis.PublishInvalidation",
		trace.WithAttributes(
			attribute.String("redis.channel", b.channel),
			attribute.String("provider.id", providerID),
		))
	defer span.End()

	if err := b.client.rdb.Publish(ctx, b.channel, providerID).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish provider invalidation: %w", err)
	}
	return nil
}

// Listen 订阅失效消息并回调，直到 ctx 结束
func (b *ProviderInvalidationBus) Listen(ctx context.Context, onInvalidate func(providerID string)) error {
	sub := b.client.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// 等待订阅确认，确保之后的消息不会丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", b.channel, err)
	}
	logger.Info(ctx, "listening for provider invalidations", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			logger.Debug(ctx, "provider invalidation received", "provider_id", msg.Payload)
			onInvalidate(msg.Payload)
		}
	}
}
