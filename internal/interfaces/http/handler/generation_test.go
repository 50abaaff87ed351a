package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller-api/internal/application/story/generation"
	apperrors "storyteller-api/pkg/errors"
)

type fakeGenerator struct {
	mu   sync.Mutex
	reqs []generation.Request
	err  error
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, req generation.Request) (<-chan generation.Event, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	ch := make(chan generation.Event, 4)
	ch <- generation.StartEvent{EpisodeID: "ep-1"}
	ch <- generation.TokenEvent{Text: "Dawn "}
	ch <- generation.SentenceEvent{Text: "Dawn broke."}
	ch <- generation.CompleteEvent{EpisodeID: "ep-1", Title: "Dawn", WordCount: 2}
	close(ch)
	return ch, nil
}

func newGenerationServer(t *testing.T, gen Generator) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := NewGenerationHandler(gen)
	engine.POST("/stories/:id/episodes/generate", h.Generate)
	engine.GET("/stories/:id/episodes/generate/ws", h.GenerateWS)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_SSE(t *testing.T) {
	gen := &fakeGenerator{}
	srv := newGenerationServer(t, gen)

	resp, err := http.Post(srv.URL+"/stories/s1/episodes/generate", "application/json",
		strings.NewReader(`{"guidance":"go north","use_alternate":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event:"); ok {
			names = append(names, strings.TrimSpace(name))
		}
	}
	assert.Equal(t, []string{"start", "token", "sentence", "complete"}, names)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "go north", gen.reqs[0].Guidance)
	assert.True(t, gen.reqs[0].UseAlternate)
}

func TestGenerate_SSEEmptyBody(t *testing.T) {
	gen := &fakeGenerator{}
	srv := newGenerationServer(t, gen)

	resp, err := http.Post(srv.URL+"/stories/s1/episodes/generate", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, gen.reqs, 1)
	assert.Equal(t, generation.Request{}, gen.reqs[0])
}

func TestGenerate_SSERejected(t *testing.T) {
	gen := &fakeGenerator{err: apperrors.ErrConflict.WithDetail("generation already running")}
	srv := newGenerationServer(t, gen)

	resp, err := http.Post(srv.URL+"/stories/s1/episodes/generate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body struct {
		Error struct {
			ErrorCode string `json:"error_code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(apperrors.CodeConflict), body.Error.ErrorCode)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stories/s1/episodes/generate/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvents(t *testing.T, conn *websocket.Conn) ([]string, error) {
	t.Helper()
	var names []string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return names, err
		}
		var env struct {
			Event string `json:"event"`
		}
		require.NoError(t, json.Unmarshal(msg, &env))
		names = append(names, env.Event)
	}
}

func TestGenerateWS(t *testing.T) {
	gen := &fakeGenerator{}
	conn := dialWS(t, newGenerationServer(t, gen))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"guidance":"rest"}`)))
	names, err := readEvents(t, conn)

	assert.Equal(t, []string{"start", "token", "sentence", "complete"}, names)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "rest", gen.reqs[0].Guidance)
}

func TestGenerateWS_Rejected(t *testing.T) {
	gen := &fakeGenerator{err: apperrors.ErrStoryNotFound.WithDetail("s1")}
	conn := dialWS(t, newGenerationServer(t, gen))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	names, err := readEvents(t, conn)

	assert.Equal(t, []string{"error"}, names)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "%v", err)
}

func TestGenerateWS_InvalidRequest(t *testing.T) {
	gen := &fakeGenerator{}
	conn := dialWS(t, newGenerationServer(t, gen))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	names, _ := readEvents(t, conn)

	assert.Equal(t, []string{"error"}, names)
	assert.Empty(t, gen.reqs)
}

func TestGenerate_SSEInvalidSettings(t *testing.T) {
	gen := &fakeGenerator{}
	srv := newGenerationServer(t, gen)

	resp, err := http.Post(srv.URL+"/stories/s1/episodes/generate", "application/json",
		strings.NewReader(`{"temperature":5.0,"writing_style":"poetic","target_word_preset":"huge"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Error struct {
			ErrorCode string `json:"error_code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(apperrors.CodeInvalidParam), body.Error.ErrorCode)
	assert.Empty(t, gen.reqs)
}

func TestGenerateWS_InvalidSettings(t *testing.T) {
	gen := &fakeGenerator{}
	conn := dialWS(t, newGenerationServer(t, gen))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"mood":"grim"}`)))
	names, err := readEvents(t, conn)

	assert.Equal(t, []string{"error"}, names)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "%v", err)
	assert.Empty(t, gen.reqs)
}
