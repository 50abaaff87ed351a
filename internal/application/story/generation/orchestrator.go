package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storyteller-api/internal/application/story/memory"
	"storyteller-api/internal/application/story/model"
	"storyteller-api/internal/application/story/prompt"
	"storyteller-api/internal/application/story/repair"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/domain/service"
	"storyteller-api/internal/infrastructure/llm"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
	"storyteller-api/pkg/metrics"
)

// AudioEnqueuer 剧集完成后投递语音合成任务
type AudioEnqueuer interface {
	Enqueue(ctx context.Context, storyID, episodeID string) (string, error)
}

// TreeInvalidator 故事剧集数变化后使谱系树缓存失效
type TreeInvalidator interface {
	InvalidateTree(ctx context.Context, storyID string)
}

// Orchestrator 剧集生成编排器
type Orchestrator struct {
	stories  repository.StoryRepository
	episodes repository.EpisodeRepository
	builder  *memory.Builder
	composer *prompt.Composer
	backend  llm.Backend
	audio    AudioEnqueuer
	trees    TreeInvalidator

	defaults         Defaults
	titleTemperature float64
	titleMaxTokens   int
	eventBuffer      int
	timeout          time.Duration
	audioOnComplete  bool

	inflight sync.Map
	wg       sync.WaitGroup
}

// NewOrchestrator 创建生成编排器，audio 与 trees 可为 nil
func NewOrchestrator(
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	builder *memory.Builder,
	composer *prompt.Composer,
	backend llm.Backend,
	audio AudioEnqueuer,
	trees TreeInvalidator,
	cfg *config.Config,
) *Orchestrator {
	o := &Orchestrator{
		stories:          stories,
		episodes:         episodes,
		builder:          builder,
		composer:         composer,
		backend:          backend,
		audio:            audio,
		trees:            trees,
		defaults:         DefaultsFromConfig(cfg),
		titleTemperature: 0.3,
		titleMaxTokens:   30,
		eventBuffer:      256,
		timeout:          15 * time.Minute,
	}
	if cfg != nil {
		g := cfg.Generation
		if g.TitleTemperature > 0 {
			o.titleTemperature = g.TitleTemperature
		}
		if g.TitleMaxTokens > 0 {
			o.titleMaxTokens = g.TitleMaxTokens
		}
		if g.EventBuffer > 0 {
			o.eventBuffer = g.EventBuffer
		}
		if g.Timeout > 0 {
			o.timeout = g.Timeout
		}
		o.audioOnComplete = cfg.Features.AudioOnComplete
	}
	return o
}

// Generate 为故事生成下一集。
// 故事状态切换与占位剧集在返回前提交；其余步骤在独立 goroutine 中运行，
// 事件通道在运行结束后关闭。生成不随调用方 ctx 取消，调用方离开后结果仍会持久化。
func (o *Orchestrator) Generate(ctx context.Context, storyID string, req Request) (<-chan Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, busy := o.inflight.LoadOrStore(storyID, struct{}{}); busy {
		return nil, apperrors.ErrConflict.WithDetail("an episode is already being generated for this story")
	}
	release := func() { o.inflight.Delete(storyID) }

	ctx = logger.WithContext(ctx, logger.StoryIDKey, storyID)
	story, placeholder, err := o.prepare(ctx, storyID, req)
	if err != nil {
		release()
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	runCtx = logger.WithContext(runCtx, logger.EpisodeIDKey, placeholder.ID)

	r := &run{
		o:          o,
		story:      story,
		episode:    placeholder,
		settings:   ResolveSettings(req, story, o.defaults),
		events:     make(chan Event, o.eventBuffer),
		clientDone: ctx.Done(),
		startedAt:  time.Now(),
	}

	metrics.ActiveGenerations.Inc()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		defer metrics.ActiveGenerations.Dec()
		defer cancel()
		defer close(r.events)
		r.execute(runCtx)
	}()
	return r.events, nil
}

// Wait 等待全部进行中的生成结束
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// InProgress 故事是否有正在进行的生成
func (o *Orchestrator) InProgress(storyID string) bool {
	_, busy := o.inflight.Load(storyID)
	return busy
}

// prepare 切换故事状态并插入占位剧集
func (o *Orchestrator) prepare(ctx context.Context, storyID string, req Request) (*entity.Story, *entity.Episode, error) {
	story, err := o.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return nil, nil, apperrors.ErrStoryNotFound.WithDetail(storyID)
	}

	if story.Status == entity.StoryStatusDraft {
		if err := o.stories.UpdateStatus(ctx, storyID, entity.StoryStatusInProgress); err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update story status")
		}
		story.Status = entity.StoryStatusInProgress
	}

	count, err := o.episodes.CountByStory(ctx, storyID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count episodes")
	}
	placeholder := entity.NewEpisodePlaceholder(storyID, count+1, strings.TrimSpace(req.Guidance))
	if err := o.episodes.Create(ctx, placeholder); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create episode")
	}
	logger.Info(ctx, "episode generation started",
		"episode_id", placeholder.ID,
		"episode_number", placeholder.Number,
	)
	return story, placeholder, nil
}

// run 单次生成的状态
type run struct {
	o        *Orchestrator
	story    *entity.Story
	episode  *entity.Episode
	settings Settings

	events     chan Event
	clientDone <-chan struct{}
	detached   bool
	startedAt  time.Time
}

// emit 发送事件；调用方已离开时停止推送，生成继续
func (r *run) emit(ctx context.Context, ev Event) {
	if r.detached {
		return
	}
	select {
	case r.events <- ev:
	case <-r.clientDone:
		r.detached = true
		logger.Info(ctx, "client went away, continuing generation without streaming")
	}
}

func (r *run) execute(ctx context.Context) {
	role := string(r.settings.Role)
	r.emit(ctx, StartEvent{EpisodeID: r.episode.ID})

	title, err := r.generate(ctx)
	if err != nil {
		r.fail(ctx, err)
		metrics.EpisodeGenerationTotal.WithLabelValues(role, "failed").Inc()
		return
	}

	metrics.EpisodeGenerationTotal.WithLabelValues(role, "success").Inc()
	metrics.EpisodeGenerationDuration.WithLabelValues(role).Observe(time.Since(r.startedAt).Seconds())
	metrics.EpisodeWordCount.WithLabelValues(string(r.settings.Preset)).Observe(float64(r.episode.WordCount))
	logger.Info(ctx, "episode generation completed",
		"episode_number", r.episode.Number,
		"word_count", r.episode.WordCount,
		"duration_ms", time.Since(r.startedAt).Milliseconds(),
	)

	r.invalidateTree(ctx)
	r.emit(ctx, CompleteEvent{EpisodeID: r.episode.ID, Title: title, WordCount: r.episode.WordCount})
	r.enqueueAudio(ctx)
}

// generate 流式生成正文并完成收尾，返回最终标题
func (r *run) generate(ctx context.Context) (string, error) {
	o := r.o
	if o.backend == nil {
		return "", apperrors.ErrLLMProviderError.WithDetail("no generation backend configured")
	}

	sc, err := o.builder.BuildContext(ctx, r.story.ID, r.settings.TargetWords)
	if err != nil {
		return "", err
	}
	system, err := o.composer.SystemPrompt(ctx, sc, r.settings.Style)
	if err != nil {
		return "", err
	}
	user, err := o.composer.UserPrompt(ctx, sc, r.settings.Preset, r.settings.TargetWords, r.episode.Guidance)
	if err != nil {
		return "", err
	}

	raw, err := r.stream(ctx, llm.Request{
		Role:         r.settings.Role,
		SystemPrompt: system,
		Prompt:       user,
		Temperature:  r.settings.Temperature,
		MaxTokens:    prompt.TokenBudget(r.settings.TargetWords),
	})
	if err != nil {
		return "", err
	}

	content := repair.Content(raw)
	if strings.TrimSpace(content) == "" {
		return "", apperrors.ErrLLMCallFailed.WithDetail("model returned no content")
	}
	return r.finalize(ctx, sc, content)
}

// stream 转发 token 与句子事件，返回拼接后的原始文本
func (r *run) stream(ctx context.Context, req llm.Request) (string, error) {
	stream, err := r.o.backend.Stream(service.WithWorkflow(ctx, service.WorkflowEpisode), req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var (
		sb       strings.Builder
		splitter SentenceSplitter
	)
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", apperrors.ErrLLMCallFailed.WithError(err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		sb.WriteString(msg.Content)
		r.emit(ctx, TokenEvent{Text: msg.Content})
		for _, s := range splitter.Push(msg.Content) {
			r.emitSentence(ctx, s)
		}
	}
	if rest := splitter.Flush(); rest != "" {
		r.emitSentence(ctx, rest)
	}
	return sb.String(), nil
}

func (r *run) emitSentence(ctx context.Context, s string) {
	metrics.EpisodeSentencesEmitted.Inc()
	r.emit(ctx, SentenceEvent{Text: s})
}

// finalize 并发生成标题与摘要，随后写入剧集与记忆快照
func (r *run) finalize(ctx context.Context, sc *model.StoryContext, content string) (string, error) {
	var title, summary string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		title = r.title(gctx, content)
		return nil
	})
	g.Go(func() error {
		s, err := r.o.builder.Summarize(gctx, content, r.settings.Role)
		summary = s
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	r.episode.Content = content
	r.episode.WordCount = repair.WordCount(content)
	r.episode.Title = title
	r.episode.Summary = summary
	if err := r.o.episodes.Update(ctx, r.episode); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.ErrEpisodeNotFound.WithDetail("episode was removed during generation")
		}
		return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save episode")
	}

	if _, err := r.o.builder.SaveSnapshot(ctx, r.story.ID, r.episode.ID, sc, nil); err != nil {
		return "", err
	}
	return title, nil
}

// title 生成标题；结果为占位标题时换用另一角色重试一次
func (r *run) title(ctx context.Context, content string) string {
	role := r.settings.Role
	t := r.titleOnce(ctx, content, role)
	if !repair.IsPlaceholderTitle(t) {
		return t
	}

	logger.Warn(ctx, "title generation returned no usable title, retrying on other provider role",
		"role", role,
		"fallback_role", role.Other(),
	)
	t = r.titleOnce(ctx, content, role.Other())
	if repair.IsPlaceholderTitle(t) {
		metrics.TitleFallbackTotal.WithLabelValues("untitled").Inc()
		return entity.UntitledEpisode
	}
	metrics.TitleFallbackTotal.WithLabelValues("recovered").Inc()
	return t
}

func (r *run) titleOnce(ctx context.Context, content string, role entity.ProviderRole) string {
	p, err := r.o.composer.TitlePrompt(ctx, content)
	if err != nil {
		logger.Warn(ctx, "failed to render title prompt", "error", err.Error())
		return entity.UntitledEpisode
	}
	out, err := r.o.backend.Generate(service.WithWorkflow(ctx, service.WorkflowTitle), llm.Request{
		Role:        role,
		Prompt:      p,
		Temperature: r.o.titleTemperature,
		MaxTokens:   r.o.titleMaxTokens,
	})
	if err != nil {
		logger.Warn(ctx, "title generation failed", "role", role, "error", err.Error())
		return entity.UntitledEpisode
	}
	return repair.Title(out)
}

// fail 发送错误事件并删除占位剧集；故事状态切换保留
func (r *run) fail(ctx context.Context, err error) {
	logger.Error(ctx, "episode generation failed", err, "episode_number", r.episode.Number)
	r.emit(ctx, ErrorEvent{EpisodeID: r.episode.ID, Message: errorMessage(err)})

	if delErr := r.o.episodes.Delete(context.WithoutCancel(ctx), r.episode.ID); delErr != nil {
		logger.Error(ctx, "failed to remove placeholder episode", delErr)
	}
	r.invalidateTree(ctx)
}

func (r *run) invalidateTree(ctx context.Context) {
	if r.o.trees != nil {
		r.o.trees.InvalidateTree(context.WithoutCancel(ctx), r.story.ID)
	}
}

func (r *run) enqueueAudio(ctx context.Context) {
	if !r.o.audioOnComplete || r.o.audio == nil {
		return
	}
	jobID, err := r.o.audio.Enqueue(ctx, r.story.ID, r.episode.ID)
	if err != nil {
		logger.Warn(ctx, "failed to enqueue episode audio", "error", err.Error())
		return
	}
	logger.Debug(ctx, "episode audio enqueued", "job_id", jobID)
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Detail != "" {
			return appErr.Message + ": " + appErr.Detail
		}
		return appErr.Message
	}
	return err.Error()
}
