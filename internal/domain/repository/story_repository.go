package repository

import (
	"context"

	"storyteller-api/internal/domain/entity"
)

// StoryFilter 故事过滤条件
type StoryFilter struct {
	Status     entity.StoryStatus
	ScenarioID string
	RootsOnly  bool
}

// StoryRepository 故事仓储接口
type StoryRepository interface {
	// Create 创建故事
	Create(ctx context.Context, story *entity.Story) error

	// GetByID 根据 ID 获取故事，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.Story, error)

	// Update 更新故事
	Update(ctx context.Context, story *entity.Story) error

	// UpdateStatus 仅更新状态
	UpdateStatus(ctx context.Context, id string, status entity.StoryStatus) error

	// Delete 删除故事及其剧集、快照与角色关联
	Delete(ctx context.Context, id string) error

	// List 获取故事列表
	List(ctx context.Context, filter *StoryFilter, pagination Pagination) (*PagedResult[*entity.Story], error)

	// ListChildren 获取直接分支
	ListChildren(ctx context.Context, parentID string) ([]*entity.Story, error)
}
