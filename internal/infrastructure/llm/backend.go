// Package llm 提供文本生成后端的接入：provider 客户端缓存、流式生成与模型列表
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/domain/service"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

// Request 一次生成调用的参数
type Request struct {
	// Role 选择默认或备用 provider
	Role         entity.ProviderRole
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
	// Model 为空时使用 provider 的默认模型
	Model string
}

// Backend 文本生成后端
type Backend interface {
	// Stream 打开增量 token 流，调用方负责 Close
	Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error)
	// Generate 完整消费流并拼接结果
	Generate(ctx context.Context, req Request) (string, error)
}

// Gateway 基于数据库中 provider 配置与 ProviderCache 的 Backend 实现
type Gateway struct {
	providers repository.LLMProviderRepository
	cache     *ProviderCache
}

// NewGateway 创建生成后端网关
func NewGateway(providers repository.LLMProviderRepository, cache *ProviderCache) *Gateway {
	return &Gateway{providers: providers, cache: cache}
}

// Resolve 按角色选择已启用的 provider，备用角色未配置时回退到默认
func (g *Gateway) Resolve(ctx context.Context, role entity.ProviderRole) (*entity.LLMProvider, error) {
	if role == "" {
		role = entity.ProviderRoleDefault
	}
	provider, err := g.providers.GetByRole(ctx, role)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load llm provider")
	}
	if provider == nil && role == entity.ProviderRoleAlternate {
		logger.Debug(ctx, "no alternate provider configured, falling back to default")
		provider, err = g.providers.GetByRole(ctx, entity.ProviderRoleDefault)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load llm provider")
		}
	}
	if provider == nil {
		return nil, apperrors.ErrLLMProviderError.WithDetail(fmt.Sprintf("no enabled %s provider configured", role))
	}
	return provider, nil
}

// Stream 实现 Backend
func (g *Gateway) Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	provider, err := g.Resolve(ctx, req.Role)
	if err != nil {
		return nil, err
	}

	modelName := req.Model
	if modelName == "" {
		modelName = provider.DefaultModel
	}
	if modelName == "" {
		return nil, apperrors.ErrLLMProviderError.WithDetail("no model specified and no default model configured")
	}

	chatModel, err := g.cache.Get(ctx, provider)
	if err != nil {
		return nil, apperrors.ErrLLMProviderError.WithError(err)
	}

	ctx = service.WithProvider(ctx, provider.Name)
	ctx = logger.WithContext(ctx, logger.ProviderKey, provider.ID)

	stream, err := chatModel.Stream(ctx, buildMessages(req), buildOptions(req, modelName)...)
	if err != nil {
		return nil, apperrors.ErrLLMProviderError.WithError(err)
	}
	return stream, nil
}

// Generate 实现 Backend
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	stream, err := g.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return Collect(stream)
}

// Collect 读取完整流并拼接内容，读取结束后关闭流
func Collect(stream *schema.StreamReader[*schema.Message]) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), apperrors.ErrLLMCallFailed.WithError(err)
		}
		if msg != nil {
			sb.WriteString(msg.Content)
		}
	}
}

func buildMessages(req Request) []*schema.Message {
	msgs := make([]*schema.Message, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(req.SystemPrompt))
	}
	return append(msgs, schema.UserMessage(req.Prompt))
}

func buildOptions(req Request, modelName string) []model.Option {
	opts := []model.Option{
		model.WithModel(modelName),
		model.WithTemperature(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	return opts
}
