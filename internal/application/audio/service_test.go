package audio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller-api/internal/application/provider"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/infrastructure/messaging"
	"storyteller-api/internal/infrastructure/persistence/memstore"
	"storyteller-api/internal/infrastructure/tts"
	apperrors "storyteller-api/pkg/errors"
)

type fakePublisher struct {
	mu   sync.Mutex
	jobs []*messaging.AudioJobMessage
	err  error
}

func (p *fakePublisher) PublishAudioJob(_ context.Context, job *messaging.AudioJobMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, job)
	return "1-0", nil
}

type harness struct {
	store     *memstore.Store
	fixture   *memstore.Fixture
	publisher *fakePublisher
	svc       *Service
	dir       string
	voices    *[]string
	speeds    []float64
	speaker   *entity.TTSProvider

	down        atomic.Bool
	listsVoices atomic.Bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	var (
		mu     sync.Mutex
		voices []string
	)
	h := &harness{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if h.down.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		case "/v1/audio/voices":
			if h.down.Load() || !h.listsVoices.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"voices":["af_heart","bm_lewis"]}`))
			return
		case "/v1/models":
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Input string  `json:"input"`
			Voice string  `json:"voice"`
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		voices = append(voices, body.Voice)
		h.speeds = append(h.speeds, body.Speed)
		mu.Unlock()
		_, _ = w.Write([]byte("AUDIO"))
	}))
	t.Cleanup(srv.Close)

	store := memstore.New()
	f, err := store.SeedStory(ctx, 2)
	require.NoError(t, err)

	speaker := entity.NewTTSProvider("kokoro", entity.TTSProviderKokoro, srv.URL)
	speaker.IsDefault = true
	speaker.DefaultVoice = "af_bella"
	require.NoError(t, store.TTSProviders().Create(ctx, speaker))

	dir := t.TempDir()
	cfg := &config.Config{TTS: config.TTSConfig{AudioDir: dir, PublicPath: "/audio/"}}
	pub := &fakePublisher{}
	svc := NewService(pub, store.Episodes(), store.Characters(),
		provider.NewTTSService(store, store.TTSProviders()), tts.NewSynthesizer(cfg), cfg)

	h.store, h.fixture, h.publisher, h.svc = store, f, pub, svc
	h.dir, h.voices, h.speaker = dir, &voices, speaker
	return h
}

func TestRender_WritesFileAndURL(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ep := h.fixture.Episodes[1]

	require.NoError(t, h.svc.Render(ctx, &messaging.AudioJobMessage{JobID: "j1", StoryID: ep.StoryID, EpisodeID: ep.ID}))

	data, err := os.ReadFile(filepath.Join(h.dir, ep.ID+".mp3"))
	require.NoError(t, err)
	assert.Equal(t, "AUDIO", string(data))

	got, err := h.store.Episodes().GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, "/audio/"+ep.ID+".mp3", got.AudioURL)
	assert.Equal(t, []string{"af_bella"}, *h.voices)
}

func TestRender_VoiceSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ep := h.fixture.Episodes[0]

	ada := h.fixture.Cast[0]
	ada.VoiceID = "ada_voice"
	require.NoError(t, h.store.Characters().Update(ctx, ada))
	require.NoError(t, h.svc.Render(ctx, &messaging.AudioJobMessage{EpisodeID: ep.ID}))

	ada.VoiceProviderID = "another-provider"
	require.NoError(t, h.store.Characters().Update(ctx, ada))
	require.NoError(t, h.svc.Render(ctx, &messaging.AudioJobMessage{EpisodeID: ep.ID}))

	require.NoError(t, h.svc.Render(ctx, &messaging.AudioJobMessage{EpisodeID: ep.ID, Voice: "explicit"}))

	assert.Equal(t, []string{"ada_voice", "af_bella", "explicit"}, *h.voices)
}

func TestRender_MissingEpisodeIsDropped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.Render(context.Background(), &messaging.AudioJobMessage{EpisodeID: "gone"}))
	assert.Empty(t, *h.voices)
}

func TestRender_NoProvider(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.store.TTSProviders().Delete(ctx, h.speaker.ID))

	err := h.svc.Render(ctx, &messaging.AudioJobMessage{EpisodeID: h.fixture.Episodes[0].ID})
	assert.True(t, errors.Is(err, apperrors.ErrProviderNotFound))
}

func TestHandle_DecodesPayload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ep := h.fixture.Episodes[0]

	msg, err := messaging.NewMessage("j2", messaging.MessageTypeEpisodeAudio, &messaging.AudioJobMessage{JobID: "j2", EpisodeID: ep.ID})
	require.NoError(t, err)
	require.NoError(t, h.svc.Handle(ctx, msg))

	got, err := h.store.Episodes().GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.AudioURL)

	bad, err := messaging.NewMessage("j3", messaging.MessageTypeEpisodeAudio, &messaging.AudioJobMessage{StoryID: ep.StoryID})
	require.NoError(t, err)
	assert.ErrorIs(t, h.svc.Handle(ctx, bad), messaging.ErrInvalidAudioJob)
}

func TestRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ep := h.fixture.Episodes[0]

	id, err := h.svc.Request(ctx, ep.ID, "", " narrator ")
	require.NoError(t, err)
	require.Len(t, h.publisher.jobs, 1)
	job := h.publisher.jobs[0]
	assert.Equal(t, id, job.JobID)
	assert.Equal(t, ep.StoryID, job.StoryID)
	assert.Equal(t, "narrator", job.Voice)

	_, err = h.svc.Request(ctx, "missing", "", "")
	assert.True(t, errors.Is(err, apperrors.ErrEpisodeNotFound))

	placeholder := entity.NewEpisodePlaceholder(ep.StoryID, 3, "")
	require.NoError(t, h.store.Episodes().Create(ctx, placeholder))
	_, err = h.svc.Request(ctx, placeholder.ID, "", "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidParam))

	_, err = h.svc.Request(ctx, ep.ID, "unknown-provider", "")
	assert.True(t, errors.Is(err, apperrors.ErrProviderNotFound))

	h.publisher.err = errors.New("redis down")
	_, err = h.svc.Enqueue(ctx, ep.StoryID, ep.ID)
	assert.True(t, errors.Is(err, apperrors.ErrQueuePublishFailed))
	assert.Len(t, h.publisher.jobs, 1)
}

func TestSpeak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	url, err := h.svc.Speak(ctx, SpeakRequest{Text: "  The lantern flickered.  ", Voice: "bm_lewis", Speed: 1.5})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/audio/"))
	assert.True(t, strings.HasSuffix(url, ".mp3"))

	data, err := os.ReadFile(filepath.Join(h.dir, strings.TrimPrefix(url, "/audio/")))
	require.NoError(t, err)
	assert.Equal(t, "AUDIO", string(data))
	assert.Equal(t, []string{"bm_lewis"}, *h.voices)
	assert.Equal(t, []float64{1.5}, h.speeds)

	_, err = h.svc.Speak(ctx, SpeakRequest{Text: "Again."})
	require.NoError(t, err)
	assert.Equal(t, []string{"bm_lewis", "af_bella"}, *h.voices)
}

func TestSpeak_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	cases := map[string]SpeakRequest{
		"blank text":     {Text: "   "},
		"text too long":  {Text: strings.Repeat("a", MaxSpeakRunes+1)},
		"speed too low":  {Text: "hi", Speed: 0.2},
		"speed too high": {Text: "hi", Speed: 2.5},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Speak(ctx, req)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidParam))
		})
	}
	assert.Empty(t, *h.voices)

	_, err := h.svc.Speak(ctx, SpeakRequest{Text: "hi", ProviderID: "nope"})
	assert.True(t, errors.Is(err, apperrors.ErrProviderNotFound))
}

func TestVoices(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	list, err := h.svc.Voices(ctx, h.speaker.ID)
	require.NoError(t, err)
	assert.Equal(t, VoiceSourceBuiltin, list.Source)
	assert.Equal(t, tts.DefaultVoices(entity.TTSProviderKokoro), list.Voices)

	h.listsVoices.Store(true)
	list, err = h.svc.Voices(ctx, h.speaker.ID)
	require.NoError(t, err)
	assert.Equal(t, VoiceSourceProvider, list.Source)
	require.Len(t, list.Voices, 2)
	assert.Equal(t, "af_heart", list.Voices[0].ID)
	assert.Equal(t, "Heart (American Female)", list.Voices[0].Name)
	assert.Equal(t, "bm_lewis", list.Voices[1].ID)

	_, err = h.svc.Voices(ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrProviderNotFound))
}

func TestTestProvider(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.listsVoices.Store(true)

	check, err := h.svc.TestProvider(ctx, h.speaker.ID)
	require.NoError(t, err)
	assert.True(t, check.Healthy)
	assert.Equal(t, "connection successful", check.Message)
	assert.Equal(t, []string{"af_heart", "bm_lewis"}, check.Voices)

	h.down.Store(true)
	check, err = h.svc.TestProvider(ctx, h.speaker.ID)
	require.NoError(t, err)
	assert.False(t, check.Healthy)
	assert.Equal(t, "tts provider is not responding", check.Message)
	assert.Empty(t, check.Voices)
}
