package postgres

import (
	"context"
	"fmt"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// EpisodeRepository 剧集仓储实现
type EpisodeRepository struct {
	client *Client
}

// NewEpisodeRepository 创建剧集仓储
func NewEpisodeRepository(client *Client) *EpisodeRepository {
	return &EpisodeRepository{client: client}
}

// Create 创建剧集
func (r *EpisodeRepository) Create(ctx context.Context, episode *entity.Episode) error {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(episode).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create episode: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取剧集
func (r *EpisodeRepository) GetByID(ctx context.Context, id string) (*entity.Episode, error) {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var episode entity.Episode
	if err := db.First(&episode, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return &episode, nil
}

// GetByNumber 根据编号获取剧集
func (r *EpisodeRepository) GetByNumber(ctx context.Context, storyID string, number int) (*entity.Episode, error) {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var episode entity.Episode
	if err := db.First(&episode, "story_id = ? AND episode_number = ?", storyID, number).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get episode by number: %w", err)
	}
	return &episode, nil
}

// Update 更新剧集内容字段；行已被删除时返回 repository.ErrNotFound，不会重新插入
func (r *EpisodeRepository) Update(ctx context.Context, episode *entity.Episode) error {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(episode).
		Select("title", "content", "summary", "guidance", "word_count", "audio_url", "updated_at").
		Updates(episode)
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to update episode: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("episode %s: %w", episode.ID, repository.ErrNotFound)
	}
	return nil
}

// UpdateAudioURL 更新音频地址
func (r *EpisodeRepository) UpdateAudioURL(ctx context.Context, id, audioURL string) error {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.UpdateAudioURL")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Episode{}).Where("id = ?", id).Update("audio_url", audioURL).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update episode audio: %w", err)
	}
	return nil
}

// Delete 删除剧集及其快照
func (r *EpisodeRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("episode_id = ?", id).Delete(&entity.MemoryState{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete episode memory state: %w", err)
	}
	if err := db.Delete(&entity.Episode{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete episode: %w", err)
	}
	return nil
}

// ListByStory 获取故事全部剧集
func (r *EpisodeRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.Episode, error) {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var episodes []*entity.Episode
	if err := db.Where("story_id = ?", storyID).Order("episode_number ASC").Find(&episodes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	return episodes, nil
}

// ListUpTo 获取编号不大于 number 的剧集
func (r *EpisodeRepository) ListUpTo(ctx context.Context, storyID string, number int) ([]*entity.Episode, error) {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.ListUpTo")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var episodes []*entity.Episode
	if err := db.Where("story_id = ? AND episode_number <= ?", storyID, number).
		Order("episode_number ASC").
		Find(&episodes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list episodes up to %d: %w", number, err)
	}
	return episodes, nil
}

// CountByStory 统计剧集数
func (r *EpisodeRepository) CountByStory(ctx context.Context, storyID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.EpisodeRepository.CountByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.Episode{}).Where("story_id = ?", storyID).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return int(count), nil
}
