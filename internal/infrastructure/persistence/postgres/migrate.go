package postgres

import (
	"context"
	"fmt"

	"storyteller-api/internal/domain/entity"
)

// models 参与自动迁移的实体
var models = []any{
	&entity.Scenario{},
	&entity.Character{},
	&entity.Story{},
	&entity.StoryCharacter{},
	&entity.Episode{},
	&entity.MemoryState{},
	&entity.LLMProvider{},
	&entity.TTSProvider{},
	&entity.SpeedButton{},
}

// AutoMigrate 创建或更新表结构
func (c *Client) AutoMigrate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.AutoMigrate")
	defer span.End()

	if err := c.db.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to enable pgcrypto: %w", err)
	}
	if err := c.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
