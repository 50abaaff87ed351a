package repository

import (
	"context"

	"storyteller-api/internal/domain/entity"
)

// MemoryStateRepository 记忆快照仓储接口，快照只增不改
type MemoryStateRepository interface {
	// Create 写入快照
	Create(ctx context.Context, state *entity.MemoryState) error

	// GetLatest 获取故事最新（剧集编号最大）的快照，不存在时返回 nil, nil
	GetLatest(ctx context.Context, storyID string) (*entity.MemoryState, error)

	// GetByEpisode 获取某剧集对应的快照
	GetByEpisode(ctx context.Context, episodeID string) (*entity.MemoryState, error)

	// ListByStory 按剧集编号升序获取快照
	ListByStory(ctx context.Context, storyID string) ([]*entity.MemoryState, error)
}
