//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"storyteller-api/internal/application/audio"
	"storyteller-api/internal/application/provider"
	"storyteller-api/internal/application/story/episode"
	"storyteller-api/internal/application/story/generation"
	"storyteller-api/internal/application/story/lineage"
	"storyteller-api/internal/application/story/memory"
	"storyteller-api/internal/application/story/prompt"
	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/infrastructure/llm"
	"storyteller-api/internal/infrastructure/messaging"
	"storyteller-api/internal/infrastructure/persistence/postgres"
	"storyteller-api/internal/infrastructure/persistence/redis"
	"storyteller-api/internal/infrastructure/tts"
	"storyteller-api/internal/interfaces/http/handler"
	"storyteller-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		LLMSet,
		ServiceSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化语音任务 worker
func InitializeWorker(ctx context.Context, cfg *config.Config, consumerName string) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		ProvideAudioConsumer,
		provider.NewTTSService,
		tts.NewSynthesizer,
		audio.NewService,
		wire.Bind(new(audio.Publisher), new(*messaging.Producer)),
		wire.Bind(new(audio.ProviderResolver), new(*provider.TTSService)),
		wire.Bind(new(audio.Synthesizer), new(*tts.Synthesizer)),
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeBootstrap 仅初始化 PostgreSQL 与 provider 服务（用于 bootstrap）
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		RepoSet,
		llm.NewModelLister,
		ProvideSeedProviderService,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewScenarioRepository,
	postgres.NewCharacterRepository,
	postgres.NewStoryRepository,
	postgres.NewEpisodeRepository,
	postgres.NewMemoryStateRepository,
	postgres.NewLLMProviderRepository,
	postgres.NewTTSProviderRepository,
	postgres.NewSpeedButtonRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ScenarioRepository), new(*postgres.ScenarioRepository)),
	wire.Bind(new(repository.CharacterRepository), new(*postgres.CharacterRepository)),
	wire.Bind(new(repository.StoryRepository), new(*postgres.StoryRepository)),
	wire.Bind(new(repository.EpisodeRepository), new(*postgres.EpisodeRepository)),
	wire.Bind(new(repository.MemoryStateRepository), new(*postgres.MemoryStateRepository)),
	wire.Bind(new(repository.LLMProviderRepository), new(*postgres.LLMProviderRepository)),
	wire.Bind(new(repository.TTSProviderRepository), new(*postgres.TTSProviderRepository)),
	wire.Bind(new(repository.SpeedButtonRepository), new(*postgres.SpeedButtonRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	redis.NewProviderInvalidationBus,
	wire.Bind(new(lineage.TreeCache), new(*redis.Cache)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// LLMSet 文本生成后端集合
var LLMSet = wire.NewSet(
	llm.NewProviderCache,
	llm.NewGateway,
	llm.NewModelLister,
	wire.Bind(new(llm.Backend), new(*llm.Gateway)),
	wire.Bind(new(provider.Invalidator), new(*llm.ProviderCache)),
	wire.Bind(new(provider.Broadcaster), new(*redis.ProviderInvalidationBus)),
	wire.Bind(new(provider.ModelSource), new(*llm.ModelLister)),
)

// ServiceSet 应用服务集合
var ServiceSet = wire.NewSet(
	prompt.NewComposer,
	memory.NewBuilder,
	generation.NewOrchestrator,
	ProvideLineageManager,
	episode.NewService,
	provider.NewService,
	provider.NewTTSService,
	tts.NewSynthesizer,
	audio.NewService,
	wire.Bind(new(generation.AudioEnqueuer), new(*audio.Service)),
	wire.Bind(new(episode.TreeInvalidator), new(*lineage.Manager)),
	wire.Bind(new(episode.GenerationTracker), new(*generation.Orchestrator)),
	wire.Bind(new(generation.TreeInvalidator), new(*lineage.Manager)),
	wire.Bind(new(audio.Publisher), new(*messaging.Producer)),
	wire.Bind(new(audio.ProviderResolver), new(*provider.TTSService)),
	wire.Bind(new(audio.Synthesizer), new(*tts.Synthesizer)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewScenarioHandler,
	handler.NewCharacterHandler,
	handler.NewStoryHandler,
	handler.NewEpisodeHandler,
	handler.NewGenerationHandler,
	handler.NewProviderHandler,
	handler.NewSpeedButtonHandler,
	handler.NewAudioHandler,
	wire.Bind(new(handler.Generator), new(*generation.Orchestrator)),
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)
