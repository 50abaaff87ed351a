package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyteller-api/internal/config"
	"storyteller-api/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		v, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, v)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := serve(engine, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	w = serve(engine, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery())
	engine.GET("/boom", func(*gin.Context) { panic("boom") })
	engine.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["message"])

	w = serve(engine, httptest.NewRequest(http.MethodGet, "/late", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func limitedEngine(cfg config.RateLimitConfig, limiter RateLimiter) *gin.Engine {
	engine := gin.New()
	keyFn := func(client, endpoint string) string { return endpoint + "|" + client }
	engine.POST("/stories/:id/generate", RateLimit(cfg, limiter, keyFn), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Limit: 5, Window: 30 * time.Second}

	deny := &stubLimiter{}
	w := serve(limitedEngine(cfg, deny), httptest.NewRequest(http.MethodPost, "/stories/1/generate", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	require.Len(t, deny.keys, 1)
	assert.True(t, strings.HasPrefix(deny.keys[0], "/stories/:id/generate|"), deny.keys[0])

	allow := &stubLimiter{allow: true}
	w = serve(limitedEngine(cfg, allow), httptest.NewRequest(http.MethodPost, "/stories/1/generate", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	broken := &stubLimiter{err: errors.New("redis down")}
	w = serve(limitedEngine(cfg, broken), httptest.NewRequest(http.MethodPost, "/stories/1/generate", nil))
	assert.Equal(t, http.StatusNoContent, w.Code, "limiter failures fail open")

	unused := &stubLimiter{}
	w = serve(limitedEngine(config.RateLimitConfig{}, unused), httptest.NewRequest(http.MethodPost, "/stories/1/generate", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, unused.keys)
}

func TestCORS_Preflight(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"http://app.local"}}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := serve(engine, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = serve(engine, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTrace_SkipsProbes(t *testing.T) {
	engine := gin.New()
	engine.Use(Trace("storyteller-test", "/health")...)
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(TraceIDHeader))
}
