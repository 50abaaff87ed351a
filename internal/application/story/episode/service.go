// Package episode 剧集查询与删除
package episode

import (
	"context"
	"fmt"
	"strings"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

// TreeInvalidator 谱系树缓存失效
type TreeInvalidator interface {
	InvalidateTree(ctx context.Context, storyID string)
}

// GenerationTracker 查询故事是否正在生成
type GenerationTracker interface {
	InProgress(storyID string) bool
}

// Service 剧集服务
type Service struct {
	stories  repository.StoryRepository
	episodes repository.EpisodeRepository
	trees    TreeInvalidator
	busy     GenerationTracker
}

// NewService 创建剧集服务，trees 与 busy 可为 nil
func NewService(
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	trees TreeInvalidator,
	busy GenerationTracker,
) *Service {
	return &Service{stories: stories, episodes: episodes, trees: trees, busy: busy}
}

// List 按编号升序返回故事的已完成剧集
func (s *Service) List(ctx context.Context, storyID string) ([]*entity.Episode, error) {
	if err := s.ensureStory(ctx, storyID); err != nil {
		return nil, err
	}
	eps, err := s.episodes.ListByStory(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list episodes")
	}
	out := make([]*entity.Episode, 0, len(eps))
	for _, ep := range eps {
		if strings.TrimSpace(ep.Content) != "" {
			out = append(out, ep)
		}
	}
	return out, nil
}

// Get 按编号获取剧集
func (s *Service) Get(ctx context.Context, storyID string, number int) (*entity.Episode, error) {
	if err := s.ensureStory(ctx, storyID); err != nil {
		return nil, err
	}
	ep, err := s.episodes.GetByNumber(ctx, storyID, number)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load episode")
	}
	if ep == nil {
		return nil, apperrors.ErrEpisodeNotFound.WithDetail(fmt.Sprintf("episode %d", number))
	}
	return ep, nil
}

// DeleteLast 删除剧集；只允许删除编号最大的一集，其记忆快照随之删除。
// 故事正在生成时拒绝删除，生成中的占位剧集不可删除。
func (s *Service) DeleteLast(ctx context.Context, storyID string, number int) error {
	if s.busy != nil && s.busy.InProgress(storyID) {
		return apperrors.ErrConflict.WithDetail("an episode is being generated for this story")
	}
	ep, err := s.Get(ctx, storyID, number)
	if err != nil {
		return err
	}
	count, err := s.episodes.CountByStory(ctx, storyID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count episodes")
	}
	if number != count {
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("only the last episode (%d) can be deleted", count))
	}

	if err := s.episodes.Delete(ctx, ep.ID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete episode")
	}
	if s.trees != nil {
		s.trees.InvalidateTree(ctx, storyID)
	}
	logger.Info(ctx, "episode deleted", "story_id", storyID, "episode_number", number)
	return nil
}

func (s *Service) ensureStory(ctx context.Context, storyID string) error {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return apperrors.ErrStoryNotFound.WithDetail(storyID)
	}
	return nil
}
