package generation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storyteller-api/internal/application/story/lineage"
	"storyteller-api/internal/application/story/memory"
	"storyteller-api/internal/application/story/prompt"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/service"
	"storyteller-api/internal/infrastructure/llm/llmtest"
	"storyteller-api/internal/infrastructure/persistence/memstore"
	apperrors "storyteller-api/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	store   *memstore.Store
	backend *llmtest.Backend
	orch    *Orchestrator
	fixture *memstore.Fixture
	trees   *treeSpy
}

type treeSpy struct {
	mu  sync.Mutex
	ids []string
}

func (s *treeSpy) InvalidateTree(_ context.Context, storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, storyID)
}

func (s *treeSpy) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func newHarness(t *testing.T, episodes int, cfg *config.Config, audio AudioEnqueuer, respond func(llmtest.Call) llmtest.Reply) *harness {
	t.Helper()
	store := memstore.New()
	f, err := store.SeedStory(context.Background(), episodes)
	require.NoError(t, err)

	backend := llmtest.New(respond)
	composer := prompt.NewComposer()
	builder := memory.NewBuilder(store.Stories(), store.Episodes(), store.Scenarios(), store.Characters(), store.MemoryStates(), backend, composer, cfg)
	trees := &treeSpy{}
	orch := NewOrchestrator(store.Stories(), store.Episodes(), builder, composer, backend, audio, trees, cfg)
	return &harness{store: store, backend: backend, orch: orch, fixture: f, trees: trees}
}

// scripted 按用途返回固定内容
func scripted(episode llmtest.Reply, title, summary string) func(llmtest.Call) llmtest.Reply {
	return func(c llmtest.Call) llmtest.Reply {
		switch c.Workflow {
		case service.WorkflowTitle:
			return llmtest.Text(title)
		case service.WorkflowSummary:
			return llmtest.Text(summary)
		default:
			return episode
		}
	}
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestGenerate_EventOrder(t *testing.T) {
	h := newHarness(t, 2, nil, nil, scripted(
		llmtest.Reply{Chunks: []string{"Rain fell. The", " wind rose!", " She ran"}},
		`"The Storm"`,
		"A storm breaks over the caravan.",
	))
	ctx := context.Background()

	ch, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{Guidance: "  bring rain  "})
	require.NoError(t, err)
	events := drain(ch)

	ep, err := h.store.Episodes().GetByNumber(ctx, h.fixture.Story.ID, 3)
	require.NoError(t, err)
	require.NotNil(t, ep)

	want := []Event{
		StartEvent{EpisodeID: ep.ID},
		TokenEvent{Text: "Rain fell. The"},
		SentenceEvent{Text: "Rain fell."},
		TokenEvent{Text: " wind rose!"},
		TokenEvent{Text: " She ran"},
		SentenceEvent{Text: "The wind rose!"},
		SentenceEvent{Text: "She ran"},
		CompleteEvent{EpisodeID: ep.ID, Title: "The Storm", WordCount: 7},
	}
	assert.Equal(t, want, events)

	assert.Equal(t, "Rain fell. The wind rose! She ran", ep.Content)
	assert.Equal(t, "The Storm", ep.Title)
	assert.Equal(t, "A storm breaks over the caravan.", ep.Summary)
	assert.Equal(t, "bring rain", ep.Guidance)
	assert.Equal(t, 7, ep.WordCount)

	story, err := h.store.Stories().GetByID(ctx, h.fixture.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StoryStatusInProgress, story.Status)

	state, err := h.store.MemoryStates().GetByEpisode(ctx, ep.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.EpisodeNumber)
	assert.Contains(t, state.ActiveMemory, "=== Episode 2: Title 2 ===")

	calls := h.backend.CallsFor(service.WorkflowEpisode)
	require.Len(t, calls, 1)
	req := calls[0].Request
	assert.Equal(t, entity.ProviderRoleDefault, req.Role)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, prompt.TokenBudget(1250), req.MaxTokens)
	assert.Contains(t, req.SystemPrompt, "The Salt Road")
	assert.Contains(t, req.Prompt, "Recent Episodes (Full Text)")
	assert.Contains(t, req.Prompt, "bring rain")

	assert.Equal(t, []string{h.fixture.Story.ID}, h.trees.calls())
}

func TestGenerate_FirstEpisodeUsesRequestSettings(t *testing.T) {
	h := newHarness(t, 0, nil, nil, scripted(llmtest.Text("It began at dawn."), "Dawn", "It began."))
	temp := 0.95

	ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{
		Preset:       entity.WordPresetShort,
		Temperature:  &temp,
		UseAlternate: true,
		Mood:         entity.MoodDark,
	})
	require.NoError(t, err)
	events := drain(ch)
	require.IsType(t, CompleteEvent{}, events[len(events)-1])

	calls := h.backend.CallsFor(service.WorkflowEpisode)
	require.Len(t, calls, 1)
	req := calls[0].Request
	assert.Equal(t, entity.ProviderRoleAlternate, req.Role)
	assert.InDelta(t, 0.95, req.Temperature, 1e-9)
	assert.Equal(t, prompt.TokenBudget(750), req.MaxTokens)
	assert.Contains(t, req.SystemPrompt, "## Story Style Configuration")

	summaries := h.backend.CallsFor(service.WorkflowSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, entity.ProviderRoleAlternate, summaries[0].Request.Role)
}

func TestGenerate_RejectsInvalidSettings(t *testing.T) {
	h := newHarness(t, 1, nil, nil, scripted(llmtest.Text("Rain fell."), "Rain", "Rain fell."))
	ctx := context.Background()
	hot := 5.0

	_, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{Temperature: &hot, WritingStyle: "poetic", Preset: "huge"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidParam), "got %v", err)
	assert.False(t, h.orch.InProgress(h.fixture.Story.ID))
	assert.Empty(t, h.backend.CallsFor(service.WorkflowEpisode))

	count, err := h.store.Episodes().CountByStory(ctx, h.fixture.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGenerate_ExplicitTargetWordsDriveLengthBlock(t *testing.T) {
	h := newHarness(t, 1, nil, nil, scripted(llmtest.Text("Rain fell."), "Rain", "Rain fell."))

	ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{TargetWords: 1000})
	require.NoError(t, err)
	drain(ch)

	calls := h.backend.CallsFor(service.WorkflowEpisode)
	require.Len(t, calls, 1)
	req := calls[0].Request
	assert.Equal(t, prompt.TokenBudget(1000), req.MaxTokens)
	assert.Contains(t, req.Prompt, "approximately 1000 words (medium episode)")
	assert.Contains(t, req.Prompt, "Do NOT exceed 1200 words")
}

func TestGenerate_StreamFailureRemovesPlaceholder(t *testing.T) {
	h := newHarness(t, 2, nil, nil, scripted(
		llmtest.Reply{Chunks: []string{"Partial text"}, StreamErr: errors.New("connection reset")},
		"unused", "unused",
	))
	ctx := context.Background()

	ch, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	events := drain(ch)

	require.Len(t, events, 3)
	start, ok := events[0].(StartEvent)
	require.True(t, ok)
	assert.Equal(t, TokenEvent{Text: "Partial text"}, events[1])
	failed, ok := events[2].(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, start.EpisodeID, failed.EpisodeID)
	assert.Contains(t, failed.Message, "LLM call failed")

	count, err := h.store.Episodes().CountByStory(ctx, h.fixture.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	story, err := h.store.Stories().GetByID(ctx, h.fixture.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StoryStatusInProgress, story.Status, "status flip persists after failure")
	assert.Empty(t, h.backend.CallsFor(service.WorkflowTitle))
	assert.Equal(t, []string{h.fixture.Story.ID}, h.trees.calls())
}

func TestGenerate_BackendUnavailable(t *testing.T) {
	h := newHarness(t, 1, nil, nil, scripted(
		llmtest.Reply{Err: apperrors.ErrLLMProviderError.WithDetail("no enabled default provider configured")},
		"", "",
	))
	ctx := context.Background()

	ch, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	events := drain(ch)

	require.Len(t, events, 2)
	failed, ok := events[1].(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "LLM provider unavailable: no enabled default provider configured", failed.Message)

	count, err := h.store.Episodes().CountByStory(ctx, h.fixture.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGenerate_PersistFailureRemovesPlaceholder(t *testing.T) {
	h := newHarness(t, 1, nil, nil, scripted(llmtest.Text("Rain fell."), "Rain", "Rain fell."))
	h.store.FailOn["memory.Create"] = errors.New("disk full")
	ctx := context.Background()

	ch, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	events := drain(ch)

	_, ok := events[len(events)-1].(ErrorEvent)
	require.True(t, ok)
	ep, err := h.store.Episodes().GetByNumber(ctx, h.fixture.Story.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, ep)
}

func TestGenerate_EmptyContentFails(t *testing.T) {
	h := newHarness(t, 0, nil, nil, scripted(llmtest.Text("   \n"), "", ""))

	ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	events := drain(ch)

	failed, ok := events[len(events)-1].(ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, failed.Message, "model returned no content")
}

func TestGenerate_TitleFallback(t *testing.T) {
	tests := []struct {
		name      string
		alternate string
		want      string
	}{
		{name: "recovered on other role", alternate: "Dust and Bone", want: "Dust and Bone"},
		{name: "both roles empty", alternate: `""`, want: entity.UntitledEpisode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1, nil, nil, func(c llmtest.Call) llmtest.Reply {
				switch c.Workflow {
				case service.WorkflowTitle:
					if c.Request.Role == entity.ProviderRoleAlternate {
						return llmtest.Text(tt.alternate)
					}
					return llmtest.Text("   ")
				case service.WorkflowSummary:
					return llmtest.Text("Rain fell.")
				default:
					return llmtest.Text("Rain fell.")
				}
			})

			ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{})
			require.NoError(t, err)
			events := drain(ch)

			done, ok := events[len(events)-1].(CompleteEvent)
			require.True(t, ok)
			assert.Equal(t, tt.want, done.Title)

			titles := h.backend.CallsFor(service.WorkflowTitle)
			require.Len(t, titles, 2, "fallback must run exactly once")
			assert.Equal(t, entity.ProviderRoleDefault, titles[0].Request.Role)
			assert.Equal(t, entity.ProviderRoleAlternate, titles[1].Request.Role)
			assert.InDelta(t, 0.3, titles[0].Request.Temperature, 1e-9)
			assert.Equal(t, 30, titles[0].Request.MaxTokens)
		})
	}
}

func TestGenerate_TitleErrorFallsBack(t *testing.T) {
	h := newHarness(t, 1, nil, nil, func(c llmtest.Call) llmtest.Reply {
		if c.Workflow == service.WorkflowTitle && c.Request.Role == entity.ProviderRoleDefault {
			return llmtest.Reply{Err: errors.New("timeout")}
		}
		if c.Workflow == service.WorkflowTitle {
			return llmtest.Text("Night Market")
		}
		return llmtest.Text("Rain fell.")
	})

	ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	events := drain(ch)

	done, ok := events[len(events)-1].(CompleteEvent)
	require.True(t, ok)
	assert.Equal(t, "Night Market", done.Title)
}

func TestGenerate_StoryNotFound(t *testing.T) {
	h := newHarness(t, 0, nil, nil, nil)

	ch, err := h.orch.Generate(context.Background(), "missing", Request{})
	assert.Nil(t, ch)
	assert.True(t, errors.Is(err, apperrors.ErrStoryNotFound))
}

func TestGenerate_PlaceholderInsertFails(t *testing.T) {
	h := newHarness(t, 0, nil, nil, nil)
	h.store.FailOn["episode.Create"] = errors.New("unique violation")

	_, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeDatabaseError, appErr.Code)

	// 失败后释放占用，可再次发起
	delete(h.store.FailOn, "episode.Create")
	h.backend.Respond = scripted(llmtest.Text("Rain fell."), "Rain", "Rain fell.")
	ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	drain(ch)
}

func TestGenerate_RejectsConcurrentRunForSameStory(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, 0, nil, nil, func(c llmtest.Call) llmtest.Reply {
		if c.Workflow == service.WorkflowEpisode {
			<-release
		}
		return llmtest.Text("Rain fell.")
	})
	ctx := context.Background()

	first, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{})
	require.NoError(t, err)

	_, err = h.orch.Generate(ctx, h.fixture.Story.ID, Request{})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	close(release)
	events := drain(first)
	require.IsType(t, CompleteEvent{}, events[len(events)-1])
}

func TestGenerate_InProgressAndDeletedPlaceholder(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, 1, nil, nil, func(c llmtest.Call) llmtest.Reply {
		if c.Workflow == service.WorkflowEpisode {
			<-release
		}
		return llmtest.Text("Rain fell.")
	})
	ctx := context.Background()
	storyID := h.fixture.Story.ID

	ch, err := h.orch.Generate(ctx, storyID, Request{})
	require.NoError(t, err)
	assert.True(t, h.orch.InProgress(storyID))

	placeholder, err := h.store.Episodes().GetByNumber(ctx, storyID, 2)
	require.NoError(t, err)
	require.NotNil(t, placeholder)
	require.NoError(t, h.store.Episodes().Delete(ctx, placeholder.ID))

	close(release)
	events := drain(ch)
	failed, ok := events[len(events)-1].(ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, failed.Message, "removed during generation")

	h.orch.Wait()
	assert.False(t, h.orch.InProgress(storyID))
	got, err := h.store.Episodes().GetByID(ctx, placeholder.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenerate_TreeReflectsNewEpisode(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	f, err := store.SeedStory(ctx, 2)
	require.NoError(t, err)

	manager := lineage.NewManager(store, store.Stories(), store.Episodes(), store.Characters(), store.MemoryStates(), newJSONCache(), nil, nil)
	backend := llmtest.New(scripted(llmtest.Text("Rain fell."), "Rain", "Rain fell."))
	composer := prompt.NewComposer()
	builder := memory.NewBuilder(store.Stories(), store.Episodes(), store.Scenarios(), store.Characters(), store.MemoryStates(), backend, composer, nil)
	orch := NewOrchestrator(store.Stories(), store.Episodes(), builder, composer, backend, nil, manager, nil)

	before, err := manager.Tree(ctx, f.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, before.EpisodeCount)

	ch, err := orch.Generate(ctx, f.Story.ID, Request{})
	require.NoError(t, err)
	drain(ch)

	after, err := manager.Tree(ctx, f.Story.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.EpisodeCount)
}

// jsonCache 进程内读穿缓存
type jsonCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newJSONCache() *jsonCache { return &jsonCache{entries: map[string][]byte{}} }

func (c *jsonCache) GetOrLoadSafe(ctx context.Context, key string, _ time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	data, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	c.entries[key] = raw
	return raw, nil
}

func (c *jsonCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func TestGenerate_ContinuesAfterClientLeaves(t *testing.T) {
	cfg := &config.Config{}
	cfg.Generation.EventBuffer = 1
	h := newHarness(t, 1, cfg, nil, scripted(
		llmtest.Reply{Chunks: []string{"Rain ", "fell. ", "The wind rose."}},
		"Rain", "Rain fell.",
	))
	ctx, cancel := context.WithCancel(context.Background())

	_, err := h.orch.Generate(ctx, h.fixture.Story.ID, Request{})
	require.NoError(t, err)
	cancel()
	h.orch.Wait()

	ep, err := h.store.Episodes().GetByNumber(context.Background(), h.fixture.Story.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, ep)
	assert.Equal(t, "Rain fell. The wind rose.", ep.Content)
	assert.Equal(t, "Rain", ep.Title)
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []string
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, storyID, episodeID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, storyID+"/"+episodeID)
	return "job-1", nil
}

func TestGenerate_EnqueuesAudioWhenEnabled(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := &config.Config{}
		cfg.Features.AudioOnComplete = enabled
		audio := &recordingEnqueuer{}
		h := newHarness(t, 0, cfg, audio, scripted(llmtest.Text("Rain fell."), "Rain", "Rain fell."))

		ch, err := h.orch.Generate(context.Background(), h.fixture.Story.ID, Request{})
		require.NoError(t, err)
		events := drain(ch)
		done := events[len(events)-1].(CompleteEvent)
		h.orch.Wait()

		audio.mu.Lock()
		if enabled {
			assert.Equal(t, []string{h.fixture.Story.ID + "/" + done.EpisodeID}, audio.jobs)
		} else {
			assert.Empty(t, audio.jobs)
		}
		audio.mu.Unlock()
	}
}
