package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/pkg/metrics"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// placeholderAPIKey 本地后端不校验密钥，但 OpenAI 客户端要求非空
const placeholderAPIKey = "not-needed"

// ChatModelBuilder 根据 provider 配置构建 ChatModel
type ChatModelBuilder func(ctx context.Context, provider *entity.LLMProvider, timeout time.Duration) (model.BaseChatModel, error)

// ProviderCache 按 provider id 缓存 Eino ChatModel 客户端实例
//
// Invalidate 会提升该 id 的版本号；构建期间若版本发生变化，构建结果不会写回缓存，
// 因此失效之后不会再读到旧配置构建出的实例。
type ProviderCache struct {
	build   ChatModelBuilder
	timeout time.Duration

	mu       sync.RWMutex
	models   map[string]model.BaseChatModel
	versions map[string]uint64
}

// NewProviderCache 创建 provider 客户端缓存
func NewProviderCache(cfg *config.Config) *ProviderCache {
	return NewProviderCacheWithBuilder(NewOpenAIChatModel, cfg.LLM.Timeout)
}

// NewProviderCacheWithBuilder 使用自定义构建函数创建缓存
func NewProviderCacheWithBuilder(build ChatModelBuilder, timeout time.Duration) *ProviderCache {
	return &ProviderCache{
		build:    build,
		timeout:  timeout,
		models:   make(map[string]model.BaseChatModel),
		versions: make(map[string]uint64),
	}
}

// Get 获取 provider 对应的 ChatModel，未命中时惰性构建
func (c *ProviderCache) Get(ctx context.Context, provider *entity.LLMProvider) (model.BaseChatModel, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is nil")
	}

	c.mu.RLock()
	m, ok := c.models[provider.ID]
	version := c.versions[provider.ID]
	c.mu.RUnlock()
	if ok {
		metrics.LLMProviderCacheEvents.WithLabelValues("hit").Inc()
		return m, nil
	}
	metrics.LLMProviderCacheEvents.WithLabelValues("miss").Inc()

	chatModel, err := c.build(ctx, provider, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", provider.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 再次检查防止竞态
	if existing, ok := c.models[provider.ID]; ok {
		return existing, nil
	}
	if c.versions[provider.ID] == version {
		c.models[provider.ID] = chatModel
	}
	return chatModel, nil
}

// Invalidate 丢弃 provider 的缓存实例
func (c *ProviderCache) Invalidate(providerID string) {
	c.mu.Lock()
	delete(c.models, providerID)
	c.versions[providerID]++
	c.mu.Unlock()
	metrics.LLMProviderCacheEvents.WithLabelValues("invalidate").Inc()
}

// Len 返回当前缓存的实例数
func (c *ProviderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// NewOpenAIChatModel 使用 Eino 的 OpenAI 适配器连接 provider 的兼容端点
func NewOpenAIChatModel(ctx context.Context, provider *entity.LLMProvider, timeout time.Duration) (model.BaseChatModel, error) {
	apiKey := provider.APIKey
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: OpenAIBaseURL(provider.BaseURL),
		Model:   provider.DefaultModel,
		Timeout: timeout,
	})
}

// OpenAIBaseURL 规范化为以 /v1 结尾的 OpenAI 兼容地址
func OpenAIBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// NativeBaseURL 去掉 /v1 后缀，得到后端的原生地址
func NativeBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return strings.TrimSuffix(base, "/v1")
}
