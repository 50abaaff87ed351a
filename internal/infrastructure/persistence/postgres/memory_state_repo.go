package postgres

import (
	"context"
	"fmt"

	"storyteller-api/internal/domain/entity"
)

// MemoryStateRepository 记忆快照仓储实现
type MemoryStateRepository struct {
	client *Client
}

// NewMemoryStateRepository 创建记忆快照仓储
func NewMemoryStateRepository(client *Client) *MemoryStateRepository {
	return &MemoryStateRepository{client: client}
}

// Create 写入快照
func (r *MemoryStateRepository) Create(ctx context.Context, state *entity.MemoryState) error {
	ctx, span := tracer.Start(ctx, "postgres.MemoryStateRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(state).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create memory state: %w", err)
	}
	return nil
}

// GetLatest 获取最新快照
func (r *MemoryStateRepository) GetLatest(ctx context.Context, storyID string) (*entity.MemoryState, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryStateRepository.GetLatest")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var state entity.MemoryState
	if err := db.Where("story_id = ?", storyID).
		Order("episode_number DESC").
		Order("created_at DESC").
		First(&state).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get latest memory state: %w", err)
	}
	return &state, nil
}

// GetByEpisode 获取剧集对应快照
func (r *MemoryStateRepository) GetByEpisode(ctx context.Context, episodeID string) (*entity.MemoryState, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryStateRepository.GetByEpisode")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var state entity.MemoryState
	if err := db.Where("episode_id = ?", episodeID).Order("created_at DESC").First(&state).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get memory state by episode: %w", err)
	}
	return &state, nil
}

// ListByStory 获取故事全部快照
func (r *MemoryStateRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.MemoryState, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryStateRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var states []*entity.MemoryState
	if err := db.Where("story_id = ?", storyID).Order("episode_number ASC").Find(&states).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list memory states: %w", err)
	}
	return states, nil
}
