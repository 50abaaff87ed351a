package provider

import (
	"context"
	"strings"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
	apperrors "storyteller-api/pkg/errors"
)

// TTSPatch 更新字段，nil 表示不修改
type TTSPatch struct {
	Name                 *string
	ProviderType         *entity.TTSProviderType
	BaseURL              *string
	APIKey               *string
	DefaultVoice         *string
	SupportsStreaming    *bool
	SupportsVoiceCloning *bool
	IsDefault            *bool
	Enabled              *bool
	Settings             map[string]string
}

// TTSService 语音合成后端管理，最多一个默认后端
type TTSService struct {
	tx   repository.Transactor
	repo repository.TTSProviderRepository
}

// NewTTSService 创建语音后端管理服务
func NewTTSService(tx repository.Transactor, repo repository.TTSProviderRepository) *TTSService {
	return &TTSService{tx: tx, repo: repo}
}

func (s *TTSService) List(ctx context.Context) ([]*entity.TTSProvider, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list tts providers")
	}
	return items, nil
}

func (s *TTSService) Get(ctx context.Context, id string) (*entity.TTSProvider, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load tts provider")
	}
	if p == nil {
		return nil, apperrors.ErrProviderNotFound.WithDetail(id)
	}
	return p, nil
}

// Resolve 按 id 获取后端，id 为空时使用默认后端
func (s *TTSService) Resolve(ctx context.Context, id string) (*entity.TTSProvider, error) {
	if id != "" {
		return s.Get(ctx, id)
	}
	p, err := s.repo.GetDefault(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load tts provider")
	}
	if p == nil || !p.Enabled {
		return nil, apperrors.ErrProviderNotFound.WithDetail("no default tts provider configured")
	}
	return p, nil
}

func (s *TTSService) Create(ctx context.Context, p *entity.TTSProvider) error {
	if err := validateTTS(p); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create tts provider")
		}
		return s.clearDefault(ctx, p)
	})
}

func (s *TTSService) Update(ctx context.Context, id string, patch TTSPatch) (*entity.TTSProvider, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyTTSPatch(p, patch)
	if err := validateTTS(p); err != nil {
		return nil, err
	}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update tts provider")
		}
		return s.clearDefault(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *TTSService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to delete tts provider")
	}
	return nil
}

func (s *TTSService) clearDefault(ctx context.Context, p *entity.TTSProvider) error {
	if !p.IsDefault {
		return nil
	}
	if err := s.repo.ClearDefault(ctx, p.ID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear default tts provider")
	}
	return nil
}

func applyTTSPatch(p *entity.TTSProvider, patch TTSPatch) {
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
	if patch.DefaultVoice != nil {
		p.DefaultVoice = strings.TrimSpace(*patch.DefaultVoice)
	}
	if patch.SupportsStreaming != nil {
		p.SupportsStreaming = *patch.SupportsStreaming
	}
	if patch.SupportsVoiceCloning != nil {
		p.SupportsVoiceCloning = *patch.SupportsVoiceCloning
	}
	if patch.IsDefault != nil {
		p.IsDefault = *patch.IsDefault
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.Settings != nil {
		p.Settings = patch.Settings
	}
}

func validateTTS(p *entity.TTSProvider) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.ErrInvalidParam.WithDetail("name is required")
	}
	if !p.ProviderType.IsValid() {
		return apperrors.ErrInvalidParam.WithDetail("unsupported provider_type: " + string(p.ProviderType))
	}
	return validateBaseURL(p.BaseURL)
}
