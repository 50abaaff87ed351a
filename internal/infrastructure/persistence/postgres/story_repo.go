package postgres

import (
	"context"
	"fmt"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// StoryRepository 故事仓储实现
type StoryRepository struct {
	client *Client
}

// NewStoryRepository 创建故事仓储
func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{client: client}
}

// Create 创建故事
func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(story).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取故事
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var story entity.Story
	if err := db.First(&story, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// Update 更新故事
func (r *StoryRepository) Update(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(story).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story: %w", err)
	}
	return nil
}

// UpdateStatus 更新故事状态
func (r *StoryRepository) UpdateStatus(ctx context.Context, id string, status entity.StoryStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Story{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update story status: %w", err)
	}
	return nil
}

// Delete 删除故事及其从属数据
func (r *StoryRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	steps := []struct {
		model any
		where string
	}{
		{&entity.MemoryState{}, "story_id = ?"},
		{&entity.Episode{}, "story_id = ?"},
		{&entity.StoryCharacter{}, "story_id = ?"},
		{&entity.Story{}, "id = ?"},
	}
	for _, step := range steps {
		if err := db.Where(step.where, id).Delete(step.model).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete story: %w", err)
		}
	}
	// 分支保留，仅断开与父故事的关联
	if err := db.Model(&entity.Story{}).Where("parent_story_id = ?", id).Update("parent_story_id", nil).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to detach story forks: %w", err)
	}
	return nil
}

// List 获取故事列表
func (r *StoryRepository) List(ctx context.Context, filter *repository.StoryFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Story{})
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.ScenarioID != "" {
			query = query.Where("scenario_id = ?", filter.ScenarioID)
		}
		if filter.RootsOnly {
			query = query.Where("parent_story_id IS NULL")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}

	var stories []*entity.Story
	if err := query.Order("updated_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&stories).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	return repository.NewPagedResult(stories, total, pagination), nil
}

// ListChildren 获取直接分支
func (r *StoryRepository) ListChildren(ctx context.Context, parentID string) ([]*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.ListChildren")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var stories []*entity.Story
	if err := db.Where("parent_story_id = ?", parentID).Order("created_at ASC").Find(&stories).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story forks: %w", err)
	}
	return stories, nil
}
