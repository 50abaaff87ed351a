package repository

import (
	"context"

	"storyteller-api/internal/domain/entity"
)

// EpisodeRepository 剧集仓储接口
type EpisodeRepository interface {
	// Create 创建剧集
	Create(ctx context.Context, episode *entity.Episode) error

	// GetByID 根据 ID 获取剧集，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Episode, error)

	// GetByNumber 根据故事与编号获取剧集
	GetByNumber(ctx context.Context, storyID string, number int) (*entity.Episode, error)

	// Update 更新剧集
	Update(ctx context.Context, episode *entity.Episode) error

	// UpdateAudioURL 仅更新音频地址
	UpdateAudioURL(ctx context.Context, id, audioURL string) error

	// Delete 删除剧集及其记忆快照
	Delete(ctx context.Context, id string) error

	// ListByStory 按编号升序获取故事全部剧集
	ListByStory(ctx context.Context, storyID string) ([]*entity.Episode, error)

	// ListUpTo 按编号升序获取编号不大于 number 的剧集
	ListUpTo(ctx context.Context, storyID string, number int) ([]*entity.Episode, error)

	// CountByStory 统计故事剧集数
	CountByStory(ctx context.Context, storyID string) (int, error)
}
