// Package lineage 管理故事分支：从指定剧集分叉与谱系树查询
package lineage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

// TreeCache 谱系树缓存
type TreeCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// TreeNode 谱系树节点
type TreeNode struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	EpisodeCount    int         `json:"episode_count"`
	ForkFromEpisode *int        `json:"fork_from_episode"`
	Children        []*TreeNode `json:"children"`
}

// Manager 故事分支管理
type Manager struct {
	tx         repository.Transactor
	stories    repository.StoryRepository
	episodes   repository.EpisodeRepository
	characters repository.CharacterRepository
	states     repository.MemoryStateRepository

	cache    TreeCache
	cacheKey func(rootID string) string
	ttl      time.Duration
}

// NewManager 创建分支管理器；cache 为 nil 时不缓存谱系树
func NewManager(
	tx repository.Transactor,
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	characters repository.CharacterRepository,
	states repository.MemoryStateRepository,
	cache TreeCache,
	cacheKey func(rootID string) string,
	cfg *config.Config,
) *Manager {
	m := &Manager{
		tx:         tx,
		stories:    stories,
		episodes:   episodes,
		characters: characters,
		states:     states,
		cache:      cache,
		cacheKey:   cacheKey,
		ttl:        30 * time.Second,
	}
	if cfg != nil {
		if !cfg.Features.TreeCache {
			m.cache = nil
		}
		if cfg.Cache.TreeTTL > 0 {
			m.ttl = cfg.Cache.TreeTTL
		}
	}
	if m.cacheKey == nil {
		m.cacheKey = func(rootID string) string { return "tree:" + rootID }
	}
	return m
}

// Fork 从 fromEpisode 处分叉出新故事。
// 新故事沿用场景与全部生成设置，复制角色表、编号不大于 fromEpisode 的剧集，
// 以及分叉点剧集的记忆快照（缺失时跳过）。全部写入在同一事务中完成。
func (m *Manager) Fork(ctx context.Context, storyID string, fromEpisode int, newTitle string) (*entity.Story, error) {
	if fromEpisode < 1 {
		return nil, apperrors.ErrInvalidParam.WithDetail("from_episode must be at least 1")
	}
	ctx = logger.WithContext(ctx, logger.StoryIDKey, storyID)

	source, err := m.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story")
	}
	if source == nil {
		return nil, apperrors.ErrStoryNotFound.WithDetail(storyID)
	}

	title := strings.TrimSpace(newTitle)
	if title == "" {
		title = fmt.Sprintf("%s (fork from episode %d)", source.Title, fromEpisode)
	}

	var forked *entity.Story
	err = m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		eps, err := m.episodes.ListUpTo(ctx, storyID, fromEpisode)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load episodes")
		}
		eps = completed(eps)
		if len(eps) < fromEpisode {
			return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("story has only %d completed episodes", len(eps)))
		}

		forked = entity.NewStory(title, source.ScenarioID)
		forked.Status = entity.StoryStatusInProgress
		forked.TargetWordPreset = source.TargetWordPreset
		forked.Temperature = source.Temperature
		forked.WritingStyle = source.WritingStyle
		forked.Mood = source.Mood
		forked.Pacing = source.Pacing
		forked.ParentStoryID = &source.ID
		fork := fromEpisode
		forked.ForkFromEpisode = &fork
		if err := m.stories.Create(ctx, forked); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create story")
		}

		cast, err := m.characters.ListCast(ctx, storyID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load characters")
		}
		for _, member := range cast {
			if member == nil || member.Character == nil {
				continue
			}
			link := &entity.StoryCharacter{StoryID: forked.ID, CharacterID: member.Character.ID, Role: member.Role}
			if err := m.characters.Attach(ctx, link); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to copy characters")
			}
		}

		var boundary, boundaryCopy *entity.Episode
		for _, ep := range eps {
			cp := ep.CloneFor(forked.ID)
			if err := m.episodes.Create(ctx, cp); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to copy episode")
			}
			if ep.Number == fromEpisode {
				boundary, boundaryCopy = ep, cp
			}
		}

		return m.copySnapshot(ctx, forked.ID, boundary, boundaryCopy)
	})
	if err != nil {
		return nil, err
	}

	m.invalidate(ctx, storyID)
	logger.Info(ctx, "story forked",
		"fork_id", forked.ID,
		"from_episode", fromEpisode,
	)
	return forked, nil
}

// copySnapshot 复制分叉点快照；源快照不存在时跳过
func (m *Manager) copySnapshot(ctx context.Context, forkID string, boundary, boundaryCopy *entity.Episode) error {
	if boundary == nil {
		return nil
	}
	state, err := m.states.GetByEpisode(ctx, boundary.ID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load memory snapshot")
	}
	if state == nil {
		logger.Warn(ctx, "no memory snapshot at fork point, skipping", "episode_number", boundary.Number)
		return nil
	}
	if err := m.states.Create(ctx, state.CloneFor(forkID, boundaryCopy.ID)); err != nil {
		return apperrors.ErrMemoryWriteFailed.WithError(err)
	}
	return nil
}

// Tree 返回故事所在谱系的完整树，从根故事开始
func (m *Manager) Tree(ctx context.Context, storyID string) (*TreeNode, error) {
	root, err := m.root(ctx, storyID)
	if err != nil {
		return nil, err
	}

	if m.cache == nil {
		return m.buildNode(ctx, root, map[string]bool{})
	}

	raw, err := m.cache.GetOrLoadSafe(ctx, m.cacheKey(root.ID), m.ttl, func(ctx context.Context) (any, error) {
		return m.buildNode(ctx, root, map[string]bool{})
	})
	if err != nil {
		logger.Warn(ctx, "tree cache unavailable, building from store", "error", err.Error())
		return m.buildNode(ctx, root, map[string]bool{})
	}
	var node TreeNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to decode cached tree")
	}
	return &node, nil
}

// InvalidateTree 使故事所在谱系的缓存失效，故事增删时调用
func (m *Manager) InvalidateTree(ctx context.Context, storyID string) {
	m.invalidate(ctx, storyID)
}

func (m *Manager) invalidate(ctx context.Context, storyID string) {
	if m.cache == nil {
		return
	}
	root, err := m.root(ctx, storyID)
	if err != nil {
		logger.Warn(ctx, "failed to resolve lineage root for cache invalidation", "error", err.Error())
		return
	}
	if err := m.cache.Delete(ctx, m.cacheKey(root.ID)); err != nil {
		logger.Warn(ctx, "failed to invalidate tree cache", "root_id", root.ID, "error", err.Error())
	}
}

// root 沿父链向上找到根故事；父故事缺失或成环时以当前节点为根
func (m *Manager) root(ctx context.Context, storyID string) (*entity.Story, error) {
	story, err := m.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound.WithDetail(storyID)
	}

	seen := map[string]bool{story.ID: true}
	for story.ParentStoryID != nil {
		parentID := *story.ParentStoryID
		if seen[parentID] {
			logger.Warn(ctx, "lineage cycle detected", "error", apperrors.ErrDataConsistency.WithDetail(parentID).Error())
			break
		}
		parent, err := m.stories.GetByID(ctx, parentID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story")
		}
		if parent == nil {
			logger.Warn(ctx, "parent story missing", "error", apperrors.ErrDataConsistency.WithDetail(parentID).Error())
			break
		}
		seen[parentID] = true
		story = parent
	}
	return story, nil
}

func (m *Manager) buildNode(ctx context.Context, story *entity.Story, seen map[string]bool) (*TreeNode, error) {
	seen[story.ID] = true

	// 只统计已完成的剧集，生成中的占位不计入
	eps, err := m.episodes.ListByStory(ctx, story.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count episodes")
	}
	children, err := m.stories.ListChildren(ctx, story.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load forks")
	}

	node := &TreeNode{
		ID:              story.ID,
		Title:           story.Title,
		EpisodeCount:    len(completed(eps)),
		ForkFromEpisode: story.ForkFromEpisode,
		Children:        make([]*TreeNode, 0, len(children)),
	}
	for _, child := range children {
		if seen[child.ID] {
			continue
		}
		cn, err := m.buildNode(ctx, child, seen)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, cn)
	}
	return node, nil
}

func completed(eps []*entity.Episode) []*entity.Episode {
	out := make([]*entity.Episode, 0, len(eps))
	for _, ep := range eps {
		if strings.TrimSpace(ep.Content) != "" {
			out = append(out, ep)
		}
	}
	return out
}
