// Package provider 管理文本生成与语音合成后端配置
package provider

import (
	"context"
	"net/url"
	"strings"

	"storyteller-api/internal/config"
	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	"storyteller-api/internal/infrastructure/llm"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

// Invalidator 本进程 provider 客户端缓存
type Invalidator interface {
	Invalidate(providerID string)
}

// Broadcaster 向其他进程广播 provider 失效
type Broadcaster interface {
	Publish(ctx context.Context, providerID string) error
}

// ModelSource 查询后端模型列表与可用性
type ModelSource interface {
	ListModels(ctx context.Context, provider *entity.LLMProvider) ([]llm.ModelInfo, error)
	Health(ctx context.Context, provider *entity.LLMProvider) bool
}

// LLMPatch 更新字段，nil 表示不修改
type LLMPatch struct {
	Name         *string
	ProviderType *entity.LLMProviderType
	BaseURL      *string
	APIKey       *string
	DefaultModel *string
	IsDefault    *bool
	IsAlternate  *bool
	Enabled      *bool
}

// Service 文本生成后端管理
type Service struct {
	tx     repository.Transactor
	repo   repository.LLMProviderRepository
	cache  Invalidator
	bus    Broadcaster
	models ModelSource
}

// NewService 创建 provider 管理服务，bus 可为 nil
func NewService(tx repository.Transactor, repo repository.LLMProviderRepository, cache Invalidator, bus Broadcaster, models ModelSource) *Service {
	return &Service{tx: tx, repo: repo, cache: cache, bus: bus, models: models}
}

// List 全部 provider
func (s *Service) List(ctx context.Context) ([]*entity.LLMProvider, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list llm providers")
	}
	return items, nil
}

// Get 获取 provider
func (s *Service) Get(ctx context.Context, id string) (*entity.LLMProvider, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load llm provider")
	}
	if p == nil {
		return nil, apperrors.ErrProviderNotFound.WithDetail(id)
	}
	return p, nil
}

// Create 创建 provider；设为默认或备用时清除其他 provider 的同一角色
func (s *Service) Create(ctx context.Context, p *entity.LLMProvider) error {
	if err := validateLLM(p); err != nil {
		return err
	}
	existing, err := s.repo.GetByName(ctx, p.Name)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load llm provider")
	}
	if existing != nil {
		return apperrors.ErrConflict.WithDetail("provider name already exists: " + p.Name)
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create llm provider")
		}
		return s.clearRoles(ctx, p)
	})
}

// Update 更新 provider 并使其缓存客户端失效
func (s *Service) Update(ctx context.Context, id string, patch LLMPatch) (*entity.LLMProvider, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyLLMPatch(p, patch)
	if err := validateLLM(p); err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update llm provider")
		}
		return s.clearRoles(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.ID)
	return p, nil
}

// Delete 删除 provider 并使其缓存客户端失效
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete llm provider")
	}
	s.invalidate(ctx, id)
	return nil
}

// ListModels 查询 provider 模型列表；后端不可达时返回空列表
func (s *Service) ListModels(ctx context.Context, id string) ([]llm.ModelInfo, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	models, err := s.models.ListModels(ctx, p)
	if err != nil {
		logger.Warn(ctx, "failed to list provider models", "provider", p.Name, "error", err.Error())
		return []llm.ModelInfo{}, nil
	}
	return models, nil
}

// Health 检查 provider 是否可达
func (s *Service) Health(ctx context.Context, id string) (bool, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.models.Health(ctx, p), nil
}

// Seed 将配置中的 provider 写入数据库，已存在的同名 provider 保持不变
func (s *Service) Seed(ctx context.Context, providers map[string]config.ProviderConfig) error {
	for name, pc := range providers {
		existing, err := s.repo.GetByName(ctx, name)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load llm provider")
		}
		if existing != nil {
			continue
		}
		p := entity.NewLLMProvider(name, entity.LLMProviderType(pc.Type), pc.BaseURL)
		p.APIKey = pc.APIKey
		p.DefaultModel = pc.Model
		p.IsDefault = pc.Default
		p.IsAlternate = pc.Alternate
		if err := s.Create(ctx, p); err != nil {
			return err
		}
		logger.Info(ctx, "seeded llm provider", "provider", name, "type", pc.Type)
	}
	return nil
}

func (s *Service) clearRoles(ctx context.Context, p *entity.LLMProvider) error {
	if p.IsDefault {
		if err := s.repo.ClearRole(ctx, entity.ProviderRoleDefault, p.ID); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear default provider")
		}
	}
	if p.IsAlternate {
		if err := s.repo.ClearRole(ctx, entity.ProviderRoleAlternate, p.ID); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear alternate provider")
		}
	}
	return nil
}

// invalidate 本进程立即失效，其他进程经广播失效；广播失败只记日志
func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, id); err != nil {
		logger.Warn(ctx, "failed to broadcast provider invalidation", "provider_id", id, "error", err.Error())
	}
}

func applyLLMPatch(p *entity.LLMProvider, patch LLMPatch) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.ProviderType != nil {
		p.ProviderType = *patch.ProviderType
	}
	if patch.BaseURL != nil {
		p.BaseURL = strings.TrimSpace(*patch.BaseURL)
	}
	if patch.APIKey != nil {
		p.APIKey = *patch.APIKey
	}
	if patch.DefaultModel != nil {
		p.DefaultModel = strings.TrimSpace(*patch.DefaultModel)
	}
	if patch.IsDefault != nil {
		p.IsDefault = *patch.IsDefault
	}
	if patch.IsAlternate != nil {
		p.IsAlternate = *patch.IsAlternate
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
}

func validateLLM(p *entity.LLMProvider) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.ErrInvalidParam.WithDetail("name is required")
	}
	if !p.ProviderType.IsValid() {
		return apperrors.ErrInvalidParam.WithDetail("unsupported provider_type: " + string(p.ProviderType))
	}
	return validateBaseURL(p.BaseURL)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.ErrInvalidParam.WithDetail("base_url must be an absolute http(s) url")
	}
	return nil
}
