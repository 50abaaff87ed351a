package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/pkg/logger"
)

const (
	defaultListTimeout   = 30 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

// ModelInfo 后端可用模型
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
	Size    int64  `json:"size,omitempty"`
}

// ModelLister 查询 provider 的模型列表与可用性
//
// OpenAI 兼容端点返回 {"data": [...]}，Ollama 原生端点返回 {"models": [...]}；
// 先尝试 provider 类型对应的格式，失败后再尝试另一种。
type ModelLister struct {
	listTimeout   time.Duration
	healthTimeout time.Duration
}

// NewModelLister 创建模型列表查询器
func NewModelLister() *ModelLister {
	return &ModelLister{listTimeout: defaultListTimeout, healthTimeout: defaultHealthTimeout}
}

// ListModels 返回 provider 的模型列表
func (l *ModelLister) ListModels(ctx context.Context, provider *entity.LLMProvider) ([]ModelInfo, error) {
	return l.list(ctx, provider, l.listTimeout)
}

// Health 检查 provider 是否可用
func (l *ModelLister) Health(ctx context.Context, provider *entity.LLMProvider) bool {
	if provider.ProviderType == entity.LLMProviderOllama {
		client, err := newOllamaClient(provider.BaseURL, l.healthTimeout)
		if err == nil && client.Heartbeat(ctx) == nil {
			return true
		}
	}
	_, err := l.list(ctx, provider, l.healthTimeout)
	if err != nil {
		logger.Debug(ctx, "provider health check failed", "provider", provider.Name, "error", err.Error())
		return false
	}
	return true
}

func (l *ModelLister) list(ctx context.Context, provider *entity.LLMProvider, timeout time.Duration) ([]ModelInfo, error) {
	shapes := []func(context.Context, *entity.LLMProvider, time.Duration) ([]ModelInfo, error){
		listOpenAIModels, listOllamaModels,
	}
	if provider.ProviderType == entity.LLMProviderOllama {
		shapes[0], shapes[1] = shapes[1], shapes[0]
	}

	var firstErr error
	for _, listFn := range shapes {
		models, err := listFn(ctx, provider, timeout)
		if err == nil {
			return models, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func listOpenAIModels(ctx context.Context, provider *entity.LLMProvider, timeout time.Duration) ([]ModelInfo, error) {
	apiKey := provider.APIKey
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	cfg := openaigo.DefaultConfig(apiKey)
	cfg.BaseURL = OpenAIBaseURL(provider.BaseURL)
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	resp, err := openaigo.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list openai-compatible models: %w", err)
	}

	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

func listOllamaModels(ctx context.Context, provider *entity.LLMProvider, timeout time.Duration) ([]ModelInfo, error) {
	client, err := newOllamaClient(provider.BaseURL, timeout)
	if err != nil {
		return nil, err
	}

	resp, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ollama models: %w", err)
	}

	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, ModelInfo{ID: m.Name, Size: m.Size})
	}
	return models, nil
}

// newOllamaClient api.NewClient 需要不带 /v1 后缀的地址
func newOllamaClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	parsed, err := url.Parse(NativeBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
	}
	return api.NewClient(parsed, &http.Client{Timeout: timeout}), nil
}
