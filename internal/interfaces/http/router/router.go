// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyteller-api/internal/config"
	"storyteller-api/internal/interfaces/http/handler"
	"storyteller-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Health      *handler.HealthHandler
	Scenario    *handler.ScenarioHandler
	Character   *handler.CharacterHandler
	Story       *handler.StoryHandler
	Episode     *handler.EpisodeHandler
	Generation  *handler.GenerationHandler
	Provider    *handler.ProviderHandler
	SpeedButton *handler.SpeedButtonHandler
	Audio       *handler.AudioHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	limiter  middleware.RateLimiter
	keyFn    func(clientKey, endpoint string) string
}

// New 创建新的路由器；limiter 为 nil 时生成接口不限流
func New(cfg *config.Config, handlers *Handlers, limiter middleware.RateLimiter, keyFn func(clientKey, endpoint string) string) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
		keyFn:    keyFn,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, "/health", "/ready", "/live", r.metricsPath())...)
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	publicPath := r.cfg.TTS.PublicPath
	if publicPath == "" {
		publicPath = "/audio"
	}
	audioDir := r.cfg.TTS.AudioDir
	if audioDir == "" {
		audioDir = "./data/audio"
	}
	r.engine.Static(publicPath, audioDir)

	RegisterV1Routes(r.engine.Group("/v1"), h, middleware.RateLimit(r.cfg.Security.RateLimit, r.limiter, r.keyFn))
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}
