// Package memory 构建分层记忆上下文并保存快照。
//
// 剧集按新到旧排列后分为三层：活跃层（最近 k 集正文）、背景层（其后 7 集摘要）、
// 淡化层（更早的剧集）。k 随目标篇幅变化，使提示词体积与请求的输出长度成比例。
package memory

import (
	"context"
	"fmt"
	"strings"

	"storyteller-api/internal/application/story/model"
	"storyteller-api/internal/application/story/prompt"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/domain/service"
	"storyteller-api/internal/infrastructure/llm"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

const (
	// BackgroundEpisodes 背景层剧集数
	BackgroundEpisodes = 7
	// condensedParagraphs 精简模式保留的末尾段落数
	condensedParagraphs = 2
)

// ActiveEpisodeCount 活跃层剧集数：≤750 词 1 集（精简），≤1250 词 2 集，否则 3 集
func ActiveEpisodeCount(targetWords int) int {
	switch {
	case targetWords <= 750:
		return 1
	case targetWords <= 1250:
		return 2
	default:
		return 3
	}
}

// Builder 记忆上下文构建器
type Builder struct {
	stories    repository.StoryRepository
	episodes   repository.EpisodeRepository
	scenarios  repository.ScenarioRepository
	characters repository.CharacterRepository
	states     repository.MemoryStateRepository

	backend            llm.Backend
	composer           *prompt.Composer
	summaryTemperature float64
	summaryMaxTokens   int
}

// NewBuilder 创建记忆上下文构建器
func NewBuilder(
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	scenarios repository.ScenarioRepository,
	characters repository.CharacterRepository,
	states repository.MemoryStateRepository,
	backend llm.Backend,
	composer *prompt.Composer,
	cfg *config.Config,
) *Builder {
	b := &Builder{
		stories:            stories,
		episodes:           episodes,
		scenarios:          scenarios,
		characters:         characters,
		states:             states,
		backend:            backend,
		composer:           composer,
		summaryTemperature: 0.3,
		summaryMaxTokens:   200,
	}
	if cfg != nil {
		if cfg.Generation.SummaryTemperature > 0 {
			b.summaryTemperature = cfg.Generation.SummaryTemperature
		}
		if cfg.Generation.SummaryMaxTokens > 0 {
			b.summaryMaxTokens = cfg.Generation.SummaryMaxTokens
		}
	}
	return b
}

// BuildContext 构建故事的生成上下文，targetWords 为本次生效的目标字数
func (b *Builder) BuildContext(ctx context.Context, storyID string, targetWords int) (*model.StoryContext, error) {
	story, err := b.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound.WithDetail(storyID)
	}

	scenario, err := b.scenarios.GetByID(ctx, story.ScenarioID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load scenario")
	}
	if scenario == nil {
		return nil, apperrors.ErrScenarioNotFound.WithDetail(story.ScenarioID)
	}

	cast, err := b.characters.ListCast(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load characters")
	}

	ascending, err := b.episodes.ListByStory(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load episodes")
	}
	// 占位剧集没有正文，不进入记忆
	ascending = completedEpisodes(ascending)

	newest := make([]*entity.Episode, len(ascending))
	for i, ep := range ascending {
		newest[len(ascending)-1-i] = ep
	}

	k := ActiveEpisodeCount(targetWords)
	active, rest := split(newest, k)
	background, faded := split(rest, BackgroundEpisodes)

	fadedText, err := b.fadedMemory(ctx, storyID, faded)
	if err != nil {
		return nil, err
	}

	sc := &model.StoryContext{
		StoryID:           storyID,
		Scenario:          model.NewScenarioContext(scenario),
		Characters:        CharacterStates(cast),
		ActiveMemory:      renderActive(active, k == 1),
		BackgroundMemory:  renderBackground(background),
		FadedMemory:       fadedText,
		ActiveEpisodes:    len(active),
		EpisodeCount:      len(ascending),
		NextEpisodeNumber: len(ascending) + 1,
	}
	logger.Debug(ctx, "story context built",
		"story_id", storyID,
		"episodes", sc.EpisodeCount,
		"active", len(active),
		"background", len(background),
		"faded", len(faded),
	)
	return sc, nil
}

// fadedMemory 无更早剧集时为空；已有快照淡化文本时沿用，并补入新老化剧集的摘要行；否则由摘要合成
func (b *Builder) fadedMemory(ctx context.Context, storyID string, faded []*entity.Episode) (string, error) {
	if len(faded) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(faded))
	for i := len(faded) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(faded[i].Summary); s != "" {
			lines = append(lines, "- "+s)
		}
	}

	latest, err := b.states.GetLatest(ctx, storyID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load memory snapshot")
	}
	if latest == nil || strings.TrimSpace(latest.FadedMemory) == "" {
		return strings.Join(lines, "\n"), nil
	}

	sticky := latest.FadedMemory
	for _, line := range lines {
		if !strings.Contains(sticky, line) {
			sticky += "\n" + line
		}
	}
	return sticky, nil
}

// SaveSnapshot 将上下文原样写入快照；sc 必须是构建提示词时使用的同一个上下文
func (b *Builder) SaveSnapshot(ctx context.Context, storyID, episodeID string, sc *model.StoryContext, plotThreads []string) (*entity.MemoryState, error) {
	if sc == nil {
		return nil, apperrors.ErrInvalidParam.WithDetail("context is nil")
	}
	if plotThreads == nil {
		plotThreads = []string{}
	}

	state := &entity.MemoryState{
		StoryID:          storyID,
		EpisodeID:        episodeID,
		EpisodeNumber:    sc.NextEpisodeNumber,
		ActiveMemory:     sc.ActiveMemory,
		BackgroundMemory: sc.BackgroundMemory,
		FadedMemory:      sc.FadedMemory,
		CharacterStates:  append([]entity.CharacterState{}, sc.Characters...),
		PlotThreads:      plotThreads,
	}
	if err := b.states.Create(ctx, state); err != nil {
		return nil, apperrors.ErrMemoryWriteFailed.WithError(err)
	}
	return state, nil
}

// Summarize 为剧集正文生成 2-3 句摘要
func (b *Builder) Summarize(ctx context.Context, content string, role entity.ProviderRole) (string, error) {
	if b.backend == nil {
		return "", apperrors.ErrLLMProviderError.WithDetail("no generation backend configured")
	}
	p, err := b.composer.SummaryPrompt(ctx, content)
	if err != nil {
		return "", err
	}

	out, err := b.backend.Generate(service.WithWorkflow(ctx, service.WorkflowSummary), llm.Request{
		Role:        role,
		Prompt:      p,
		Temperature: b.summaryTemperature,
		MaxTokens:   b.summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CharacterStates 将故事角色表转换为快照中的角色状态
func CharacterStates(cast []*entity.CastMember) []entity.CharacterState {
	out := make([]entity.CharacterState, 0, len(cast))
	for _, m := range cast {
		if m == nil || m.Character == nil {
			continue
		}
		out = append(out, entity.CharacterState{
			Name:        m.Character.Name,
			Role:        string(m.Role),
			Description: m.Character.Description,
			Personality: m.Character.Personality,
			Motivations: m.Character.Motivations,
			Backstory:   m.Character.Backstory,
		})
	}
	return out
}

func completedEpisodes(eps []*entity.Episode) []*entity.Episode {
	out := eps[:0:0]
	for _, ep := range eps {
		if strings.TrimSpace(ep.Content) != "" {
			out = append(out, ep)
		}
	}
	return out
}

func split(eps []*entity.Episode, n int) ([]*entity.Episode, []*entity.Episode) {
	if len(eps) <= n {
		return eps, nil
	}
	return eps[:n], eps[n:]
}

// renderActive 输入为新到旧，输出按时间正序
func renderActive(newest []*entity.Episode, condensed bool) string {
	parts := make([]string, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		ep := newest[i]
		body := ep.Content
		if condensed {
			body = condense(ep)
		}
		parts = append(parts, fmt.Sprintf("=== Episode %d: %s ===\n%s", ep.Number, ep.DisplayTitle(), body))
	}
	return strings.Join(parts, "\n\n")
}

// condense 摘要 + 空行 + 正文最后两段
func condense(ep *entity.Episode) string {
	var paras []string
	for _, p := range strings.Split(ep.Content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) > condensedParagraphs {
		paras = paras[len(paras)-condensedParagraphs:]
	}
	tail := strings.Join(paras, "\n\n")

	summary := strings.TrimSpace(ep.Summary)
	if summary == "" {
		return tail
	}
	return summary + "\n\n" + tail
}

func renderBackground(newest []*entity.Episode) string {
	lines := make([]string, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		ep := newest[i]
		if s := strings.TrimSpace(ep.Summary); s != "" {
			lines = append(lines, fmt.Sprintf("Episode %d: %s", ep.Number, s))
		}
	}
	return strings.Join(lines, "\n")
}
