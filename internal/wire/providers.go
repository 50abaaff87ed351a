// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"storyteller-api/internal/application/audio"
	"storyteller-api/internal/application/provider"
	"storyteller-api/internal/application/story/generation"
	"storyteller-api/internal/application/story/lineage"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/infrastructure/llm"
	"storyteller-api/internal/infrastructure/messaging"
	"storyteller-api/internal/infrastructure/persistence/postgres"
	"storyteller-api/internal/infrastructure/persistence/redis"
	"storyteller-api/internal/interfaces/http/handler"
	"storyteller-api/internal/interfaces/http/router"
	"storyteller-api/pkg/logger"
)

// App API 网关运行所需的组件
type App struct {
	Router       *router.Router
	Orchestrator *generation.Orchestrator
	Cache        *llm.ProviderCache
	Bus          *redis.ProviderInvalidationBus
	Postgres     *postgres.Client
}

// ListenInvalidations 订阅其他进程的 provider 变更并失效本地客户端，直到 ctx 结束
func (a *App) ListenInvalidations(ctx context.Context) {
	if err := a.Bus.Listen(ctx, a.Cache.Invalidate); err != nil {
		logger.Error(ctx, "provider invalidation listener stopped", err)
	}
}

// Worker 语音任务 worker
type Worker struct {
	Consumer *messaging.Consumer
	Audio    *audio.Service
}

// Bootstrap 初始化数据库所需的组件
type Bootstrap struct {
	Postgres  *postgres.Client
	Providers *provider.Service
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), cfg)
}

// ProvideAudioConsumer 提供语音任务消费者
func ProvideAudioConsumer(redisClient *redis.Client, cfg *config.Config, consumerName string) *messaging.Consumer {
	return messaging.NewConsumer(redisClient.Redis(), messaging.NewAudioWorkerConfig(cfg, consumerName))
}

// ProvideLineageManager 提供分支管理器，谱系树缓存在 Redis 中
func ProvideLineageManager(
	tx repository.Transactor,
	stories repository.StoryRepository,
	episodes repository.EpisodeRepository,
	characters repository.CharacterRepository,
	states repository.MemoryStateRepository,
	cache lineage.TreeCache,
	cfg *config.Config,
) *lineage.Manager {
	return lineage.NewManager(tx, stories, episodes, characters, states, cache, redis.BuildTreeKey, cfg)
}

// ProvideSeedProviderService bootstrap 只写数据库，不需要缓存失效
func ProvideSeedProviderService(tx repository.Transactor, repo repository.LLMProviderRepository, models *llm.ModelLister) *provider.Service {
	return provider.NewService(tx, repo, nil, nil, models)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rc *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, map[string]handler.HealthChecker{
		"postgres": pg,
		"redis":    rc,
	})
}

// ProvideRouter 提供路由器，生成接口按客户端 IP 限流
func ProvideRouter(cfg *config.Config, handlers *router.Handlers, limiter *redis.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter, redis.BuildRateLimitKey)
}
