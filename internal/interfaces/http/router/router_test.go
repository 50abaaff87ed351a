package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller-api/internal/application/audio"
	"storyteller-api/internal/application/provider"
	"storyteller-api/internal/application/story/episode"
	"storyteller-api/internal/application/story/generation"
	"storyteller-api/internal/application/story/lineage"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/infrastructure/messaging"
	"storyteller-api/internal/infrastructure/persistence/memstore"
	"storyteller-api/internal/infrastructure/tts"
	"storyteller-api/internal/interfaces/http/handler"
	"storyteller-api/internal/interfaces/http/middleware"
	apperrors "storyteller-api/pkg/errors"
)

type noopGenerator struct{}

func (noopGenerator) Generate(context.Context, string, generation.Request) (<-chan generation.Event, error) {
	return nil, apperrors.ErrServiceUnavailable
}

type queue struct{ jobs []*messaging.AudioJobMessage }

func (q *queue) PublishAudioJob(_ context.Context, job *messaging.AudioJobMessage) (string, error) {
	q.jobs = append(q.jobs, job)
	return "1-0", nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func keyFn(clientKey, endpoint string) string { return clientKey + ":" + endpoint }

type env struct {
	engine  *gin.Engine
	store   *memstore.Store
	fixture *memstore.Fixture
	queue   *queue
	cfg     *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newLimitedEnv(t, nil)
}

func newLimitedEnv(t *testing.T, limiter middleware.RateLimiter) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := memstore.New()
	f, err := store.SeedStory(ctx, 3)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.TTS.AudioDir = t.TempDir()
	cfg.TTS.PublicPath = "/audio"
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Path = "/metrics"
	cfg.Security.RateLimit.Enabled = limiter != nil

	q := &queue{}
	lineageManager := lineage.NewManager(store, store.Stories(), store.Episodes(), store.Characters(), store.MemoryStates(), nil, nil, cfg)
	ttsProviders := provider.NewTTSService(store, store.TTSProviders())
	handlers := &Handlers{
		Health:      handler.NewHealthHandler("test", nil),
		Scenario:    handler.NewScenarioHandler(store.Scenarios()),
		Character:   handler.NewCharacterHandler(store.Characters()),
		Story:       handler.NewStoryHandler(store.Stories(), store.Scenarios(), store.Characters(), lineageManager),
		Episode:     handler.NewEpisodeHandler(episode.NewService(store.Stories(), store.Episodes(), lineageManager, nil)),
		Generation:  handler.NewGenerationHandler(noopGenerator{}),
		Provider:    handler.NewProviderHandler(provider.NewService(store, store.LLMProviders(), nil, nil, nil), ttsProviders),
		SpeedButton: handler.NewSpeedButtonHandler(store.SpeedButtons()),
		Audio: handler.NewAudioHandler(audio.NewService(q, store.Episodes(), store.Characters(),
			ttsProviders, tts.NewSynthesizer(cfg), cfg)),
	}
	return &env{engine: New(cfg, handlers, limiter, keyFn).Engine(), store: store, fixture: f, queue: q, cfg: cfg}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			ErrorCode string `json:"error_code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error.ErrorCode
}

func TestSystemRoutes(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/live", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/ready", nil).Code)

	w := e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestStoryLifecycle(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/stories", map[string]any{
		"title":       "Second Crossing",
		"scenario_id": e.fixture.Scenario.ID,
		"mood":        "dark",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, "dark", created["mood"])
	assert.Equal(t, false, created["is_fork"])

	w = e.do(t, http.MethodPost, "/v1/stories", map[string]any{"title": "x", "scenario_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/v1/stories", map[string]any{
		"title": "x", "scenario_id": e.fixture.Scenario.ID, "mood": "gloomy",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := created["id"].(string)
	w = e.do(t, http.MethodPut, "/v1/stories/"+id, map[string]any{"title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", decode[map[string]any](t, w)["title"])

	w = e.do(t, http.MethodGet, "/v1/stories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/v1/stories/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/stories/"+id, nil).Code)
}

func TestStoryCast(t *testing.T) {
	e := newEnv(t)
	storyID := e.fixture.Story.ID

	w := e.do(t, http.MethodPost, "/v1/characters", map[string]any{"name": "Cora"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cora := decode[map[string]any](t, w)["id"].(string)

	w = e.do(t, http.MethodPost, "/v1/stories/"+storyID+"/characters", map[string]any{"character_id": cora})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "supporting", decode[map[string]any](t, w)["role"])

	w = e.do(t, http.MethodPost, "/v1/stories/"+storyID+"/characters", map[string]any{"character_id": cora, "role": "villain"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/stories/"+storyID+"/characters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 3)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/v1/stories/"+storyID+"/characters/"+cora, nil).Code)
	w = e.do(t, http.MethodGet, "/v1/stories/"+storyID+"/characters", nil)
	assert.Len(t, decode[[]map[string]any](t, w), 2)
}

func TestEpisodeRoutes(t *testing.T) {
	e := newEnv(t)
	base := "/v1/stories/" + e.fixture.Story.ID + "/episodes"

	w := e.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 3)
	assert.NotContains(t, list[0], "content")

	w = e.do(t, http.MethodGet, base+"/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, e.fixture.Episodes[1].Content, decode[map[string]any](t, w)["content"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, base+"/zero", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, base+"/9", nil).Code)

	w = e.do(t, http.MethodDelete, base+"/2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeInvalidParam), errorCode(t, w))
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, base+"/3", nil).Code)

	w = e.do(t, http.MethodPost, base+"/generate", map[string]any{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestForkAndTree(t *testing.T) {
	e := newEnv(t)
	storyID := e.fixture.Story.ID

	w := e.do(t, http.MethodPost, "/v1/stories/"+storyID+"/fork", map[string]any{"from_episode": 2, "title": "What if"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	fork := decode[map[string]any](t, w)
	assert.Equal(t, true, fork["is_fork"])
	assert.Equal(t, storyID, fork["parent_story_id"])

	w = e.do(t, http.MethodGet, "/v1/stories/"+fork["id"].(string)+"/episodes", nil)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = e.do(t, http.MethodPost, "/v1/stories/"+storyID+"/fork", map[string]any{"from_episode": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/stories/"+fork["id"].(string)+"/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[map[string]any](t, w)
	assert.Equal(t, storyID, tree["id"])
	assert.Len(t, tree["children"], 1)
}

func TestProviderRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/providers/llm", map[string]any{
		"name": "local", "provider_type": "ollama", "base_url": "http://localhost:11434",
		"api_key": "secret", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")
	created := decode[map[string]any](t, w)
	assert.Equal(t, true, created["has_api_key"])
	id := created["id"].(string)

	w = e.do(t, http.MethodPost, "/v1/providers/llm", map[string]any{
		"name": "local", "provider_type": "ollama", "base_url": "http://localhost:11434",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPut, "/v1/providers/llm/"+id, map[string]any{"default_model": "llama3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "llama3", decode[map[string]any](t, w)["default_model"])

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/providers/llm/missing", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/v1/providers/llm/"+id, nil).Code)

	w = e.do(t, http.MethodPost, "/v1/providers/tts", map[string]any{
		"name": "kokoro", "provider_type": "kokoro", "base_url": "http://kokoro:8880", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(t, http.MethodGet, "/v1/providers/tts", nil)
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestAudioRoutes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	speaker := entity.NewTTSProvider("kokoro", entity.TTSProviderKokoro, "http://kokoro:8880")
	speaker.IsDefault = true
	require.NoError(t, e.store.TTSProviders().Create(ctx, speaker))

	ep := e.fixture.Episodes[0]
	w := e.do(t, http.MethodPost, "/v1/episodes/"+ep.ID+"/audio", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job := decode[map[string]any](t, w)
	assert.Equal(t, ep.ID, job["episode_id"])
	require.Len(t, e.queue.jobs, 1)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/v1/episodes/missing/audio", nil).Code)

	require.NoError(t, os.WriteFile(filepath.Join(e.cfg.TTS.AudioDir, ep.ID+".mp3"), []byte("AUDIO"), 0o644))
	w = e.do(t, http.MethodGet, fmt.Sprintf("/audio/%s.mp3", ep.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AUDIO", w.Body.String())
}

func TestRateLimitAppliesToGeneration(t *testing.T) {
	e := newLimitedEnv(t, denyAll{})
	storyID := e.fixture.Story.ID

	w := e.do(t, http.MethodPost, "/v1/stories/"+storyID+"/episodes/generate", map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/stories/"+storyID, nil).Code)
}

func TestSpeedButtonRoutes(t *testing.T) {
	e := newEnv(t)

	var ids []string
	for _, label := range []string{"Twist", "Calm", "Reveal"} {
		w := e.do(t, http.MethodPost, "/v1/speed-buttons", map[string]any{"label": label, "guidance": "Make it " + label})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids = append(ids, decode[map[string]any](t, w)["id"].(string))
	}

	w := e.do(t, http.MethodGet, "/v1/speed-buttons/"+ids[1], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Calm", decode[map[string]any](t, w)["label"])
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/speed-buttons/missing", nil).Code)

	w = e.do(t, http.MethodPost, "/v1/speed-buttons/reorder", map[string]any{"button_ids": []string{ids[2], ids[0], ids[1]}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var labels []string
	for _, b := range decode[[]map[string]any](t, w) {
		labels = append(labels, b["label"].(string))
	}
	assert.Equal(t, []string{"Reveal", "Twist", "Calm"}, labels)

	w = e.do(t, http.MethodPost, "/v1/speed-buttons/reorder", map[string]any{"button_ids": []string{ids[0], "missing"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeInvalidParam), errorCode(t, w))

	w = e.do(t, http.MethodPost, "/v1/speed-buttons/reorder", map[string]any{"button_ids": []string{ids[0], ids[0]}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/v1/speed-buttons/reorder", map[string]any{"button_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/speed-buttons", nil)
	labels = labels[:0]
	for _, b := range decode[[]map[string]any](t, w) {
		labels = append(labels, b["label"].(string))
	}
	assert.Equal(t, []string{"Reveal", "Twist", "Calm"}, labels)
}

func TestSpeakAndVoiceRoutes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/speech":
			_, _ = w.Write([]byte("SPOKEN"))
		case "/health":
			_, _ = w.Write([]byte("ok"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	speaker := entity.NewTTSProvider("kokoro", entity.TTSProviderKokoro, srv.URL)
	speaker.IsDefault = true
	require.NoError(t, e.store.TTSProviders().Create(ctx, speaker))

	w := e.do(t, http.MethodPost, "/v1/tts/generate", map[string]any{"text": "The door creaked open.", "speed": 1.25})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	url := decode[map[string]any](t, w)["audio_url"].(string)
	w = e.do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SPOKEN", w.Body.String())

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/v1/tts/generate", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/v1/tts/generate", map[string]any{"text": "hi", "speed": 3}).Code)

	w = e.do(t, http.MethodGet, "/v1/providers/tts/"+speaker.ID+"/voices", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[map[string]any](t, w)
	assert.Equal(t, audio.VoiceSourceBuiltin, list["source"])
	assert.NotEmpty(t, list["voices"])

	w = e.do(t, http.MethodPost, "/v1/providers/tts/"+speaker.ID+"/test", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	check := decode[map[string]any](t, w)
	assert.Equal(t, true, check["healthy"])
	assert.Equal(t, "connection successful", check["message"])

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/v1/providers/tts/missing/voices", nil).Code)
}
