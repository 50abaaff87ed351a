package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller-api/internal/application/story/prompt"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/service"
	"storyteller-api/internal/infrastructure/llm"
	"storyteller-api/internal/infrastructure/llm/llmtest"
	"storyteller-api/internal/infrastructure/persistence/memstore"
	apperrors "storyteller-api/pkg/errors"
)

func newBuilder(store *memstore.Store, backend llm.Backend) *Builder {
	return NewBuilder(store.Stories(), store.Episodes(), store.Scenarios(), store.Characters(), store.MemoryStates(), backend, prompt.NewComposer(), nil)
}

func summaryLines(format string, from, to int) string {
	var lines []string
	for n := from; n <= to; n++ {
		lines = append(lines, fmt.Sprintf(format, n, n))
	}
	return strings.Join(lines, "\n")
}

func fullEntry(n int) string {
	return fmt.Sprintf("=== Episode %d: Title %d ===\nOpening of episode %d.\n\nMiddle of episode %d.\n\nEnding of episode %d.", n, n, n, n, n)
}

func TestBuildContext_NextEpisodeNumber(t *testing.T) {
	ctx := context.Background()
	for e := 0; e <= 5; e++ {
		store := memstore.New()
		f, err := store.SeedStory(ctx, e)
		require.NoError(t, err)

		sc, err := newBuilder(store, nil).BuildContext(ctx, f.Story.ID, 1250)
		require.NoError(t, err)
		assert.Equal(t, e, sc.EpisodeCount)
		assert.Equal(t, e+1, sc.NextEpisodeNumber)
	}
}

func TestBuildContext_PlaceholderIgnored(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, store.Episodes().Create(ctx, entity.NewEpisodePlaceholder(f.Story.ID, 4, "")))

	sc, err := newBuilder(store, nil).BuildContext(ctx, f.Story.ID, 1250)
	require.NoError(t, err)
	assert.Equal(t, 4, sc.NextEpisodeNumber)
	assert.NotContains(t, sc.ActiveMemory, "Episode 4")
}

func TestActiveEpisodeCount(t *testing.T) {
	assert.Equal(t, 1, ActiveEpisodeCount(750))
	assert.Equal(t, 2, ActiveEpisodeCount(751))
	assert.Equal(t, 2, ActiveEpisodeCount(1250))
	assert.Equal(t, 3, ActiveEpisodeCount(2000))
	assert.Equal(t, 3, ActiveEpisodeCount(3000))
}

func TestBuildContext_TierSelection(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 12)
	require.NoError(t, err)
	b := newBuilder(store, nil)

	tests := []struct {
		name       string
		words      int
		active     string
		background string
		faded      string
	}{
		{
			name:       "short condensed",
			words:      750,
			active:     "=== Episode 12: Title 12 ===\nSummary 12.\n\nMiddle of episode 12.\n\nEnding of episode 12.",
			background: summaryLines("Episode %d: Summary %d.", 5, 11),
			faded:      "- Summary 1.\n- Summary 2.\n- Summary 3.\n- Summary 4.",
		},
		{
			name:       "medium",
			words:      1250,
			active:     fullEntry(11) + "\n\n" + fullEntry(12),
			background: summaryLines("Episode %d: Summary %d.", 4, 10),
			faded:      "- Summary 1.\n- Summary 2.\n- Summary 3.",
		},
		{
			name:       "long",
			words:      2000,
			active:     fullEntry(10) + "\n\n" + fullEntry(11) + "\n\n" + fullEntry(12),
			background: summaryLines("Episode %d: Summary %d.", 3, 9),
			faded:      "- Summary 1.\n- Summary 2.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := b.BuildContext(ctx, f.Story.ID, tt.words)
			require.NoError(t, err)
			assert.Equal(t, tt.active, sc.ActiveMemory)
			assert.Equal(t, tt.background, sc.BackgroundMemory)
			assert.Equal(t, tt.faded, sc.FadedMemory)
			assert.Equal(t, ActiveEpisodeCount(tt.words), sc.ActiveEpisodes)
		})
	}
}

func TestBuildContext_FewEpisodes(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 2)
	require.NoError(t, err)

	sc, err := newBuilder(store, nil).BuildContext(ctx, f.Story.ID, 2000)
	require.NoError(t, err)
	assert.Equal(t, fullEntry(1)+"\n\n"+fullEntry(2), sc.ActiveMemory)
	assert.Empty(t, sc.BackgroundMemory)
	assert.Empty(t, sc.FadedMemory)
}

func TestBuildContext_ScenarioAndCast(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 0)
	require.NoError(t, err)

	sc, err := newBuilder(store, nil).BuildContext(ctx, f.Story.ID, 1250)
	require.NoError(t, err)
	assert.Equal(t, "The Salt Road", sc.Scenario.Name)
	assert.Equal(t, []string{"trust", "survival"}, sc.Scenario.Themes)

	want := []entity.CharacterState{
		{Name: "Ada", Role: "protagonist", Description: "Ada travels the road"},
		{Name: "Bram", Role: "antagonist", Description: "Bram travels the road"},
	}
	if diff := cmp.Diff(want, sc.Characters); diff != "" {
		t.Errorf("characters mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, sc.IsFirstEpisode())
	assert.False(t, sc.HasMemory())
}

func TestBuildContext_FadedReuse(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 12)
	require.NoError(t, err)
	b := newBuilder(store, nil)

	require.NoError(t, store.MemoryStates().Create(ctx, &entity.MemoryState{
		StoryID:       f.Story.ID,
		EpisodeID:     f.Episodes[10].ID,
		EpisodeNumber: 11,
		FadedMemory:   "- The caravan left the coast.\n- Summary 1.\n- Summary 2.",
	}))

	sc, err := b.BuildContext(ctx, f.Story.ID, 1250)
	require.NoError(t, err)
	assert.Equal(t, "- The caravan left the coast.\n- Summary 1.\n- Summary 2.\n- Summary 3.", sc.FadedMemory)

	// 最新快照淡化层为空时回退为摘要合成
	require.NoError(t, store.MemoryStates().Create(ctx, &entity.MemoryState{
		StoryID:       f.Story.ID,
		EpisodeID:     f.Episodes[11].ID,
		EpisodeNumber: 12,
	}))
	sc, err = b.BuildContext(ctx, f.Story.ID, 1250)
	require.NoError(t, err)
	assert.Equal(t, "- Summary 1.\n- Summary 2.\n- Summary 3.", sc.FadedMemory)
}

func TestBuildContext_StoryNotFound(t *testing.T) {
	_, err := newBuilder(memstore.New(), nil).BuildContext(context.Background(), "missing", 1250)
	assert.True(t, errors.Is(err, apperrors.ErrStoryNotFound))
}

func TestBuildContext_RepositoryError(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 1)
	require.NoError(t, err)
	store.FailOn["episode.List"] = errors.New("connection reset")

	_, err = newBuilder(store, nil).BuildContext(ctx, f.Story.ID, 1250)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeDatabaseError, appErr.Code)
}

func TestSaveSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	f, err := store.SeedStory(ctx, 12)
	require.NoError(t, err)
	b := newBuilder(store, nil)

	sc, err := b.BuildContext(ctx, f.Story.ID, 1250)
	require.NoError(t, err)

	ep, err := store.SeedEpisode(ctx, f.Story.ID, 13)
	require.NoError(t, err)
	state, err := b.SaveSnapshot(ctx, f.Story.ID, ep.ID, sc, nil)
	require.NoError(t, err)

	saved, err := store.MemoryStates().GetByEpisode(ctx, ep.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, state.ID, saved.ID)
	assert.Equal(t, 13, saved.EpisodeNumber)
	assert.Equal(t, sc.ActiveMemory, saved.ActiveMemory)
	assert.Equal(t, sc.BackgroundMemory, saved.BackgroundMemory)
	assert.Equal(t, sc.FadedMemory, saved.FadedMemory)
	assert.Equal(t, sc.Characters, saved.CharacterStates)
	assert.Equal(t, []string{}, saved.PlotThreads)

	store.FailOn["memory.Create"] = errors.New("disk full")
	_, err = b.SaveSnapshot(ctx, f.Story.ID, ep.ID, sc, []string{"the well"})
	assert.True(t, errors.Is(err, apperrors.ErrMemoryWriteFailed))
}

func TestSummarize(t *testing.T) {
	backend := llmtest.New(func(llmtest.Call) llmtest.Reply {
		return llmtest.Reply{Chunks: []string{"  Ada crosses ", "the dunes.  "}}
	})
	b := newBuilder(memstore.New(), backend)

	out, err := b.Summarize(context.Background(), "Ada walked.", entity.ProviderRoleDefault)
	require.NoError(t, err)
	assert.Equal(t, "Ada crosses the dunes.", out)

	calls := backend.CallsFor(service.WorkflowSummary)
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.3, calls[0].Request.Temperature, 1e-9)
	assert.Equal(t, 200, calls[0].Request.MaxTokens)
	assert.Contains(t, calls[0].Request.Prompt, "Episode:\nAda walked.\n\nSummary:")
}

func TestSummarize_NoBackend(t *testing.T) {
	_, err := newBuilder(memstore.New(), nil).Summarize(context.Background(), "x", entity.ProviderRoleDefault)
	assert.True(t, errors.Is(err, apperrors.ErrLLMProviderError))
}
