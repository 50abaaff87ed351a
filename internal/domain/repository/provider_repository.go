package repository

import (
	"context"

	"storyteller-api/internal/domain/entity"
)

// LLMProviderRepository 文本生成后端仓储接口
type LLMProviderRepository interface {
	Create(ctx context.Context, provider *entity.LLMProvider) error
	GetByID(ctx context.Context, id string) (*entity.LLMProvider, error)
	GetByName(ctx context.Context, name string) (*entity.LLMProvider, error)
	Update(ctx context.Context, provider *entity.LLMProvider) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.LLMProvider, error)

	// GetByRole 获取启用中的默认或备用 provider，不存在时返回 nil, nil
	GetByRole(ctx context.Context, role entity.ProviderRole) (*entity.LLMProvider, error)

	// ClearRole 清除除 exceptID 外所有 provider 的角色标记
	ClearRole(ctx context.Context, role entity.ProviderRole, exceptID string) error
}

// TTSProviderRepository 语音合成后端仓储接口
type TTSProviderRepository interface {
	Create(ctx context.Context, provider *entity.TTSProvider) error
	GetByID(ctx context.Context, id string) (*entity.TTSProvider, error)
	Update(ctx context.Context, provider *entity.TTSProvider) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.TTSProvider, error)

	// GetDefault 获取默认语音后端，不存在时返回 nil, nil
	GetDefault(ctx context.Context) (*entity.TTSProvider, error)

	// ClearDefault 清除除 exceptID 外的默认标记
	ClearDefault(ctx context.Context, exceptID string) error
}

// SpeedButtonRepository 快捷引导仓储接口
type SpeedButtonRepository interface {
	Create(ctx context.Context, button *entity.SpeedButton) error
	GetByID(ctx context.Context, id string) (*entity.SpeedButton, error)
	Update(ctx context.Context, button *entity.SpeedButton) error
	Delete(ctx context.Context, id string) error

	// List 按 display_order 升序
	List(ctx context.Context) ([]*entity.SpeedButton, error)
	// Reorder 按 ids 顺序重写展示顺序；任一 id 不存在时返回 ErrNotFound 且不做修改
	Reorder(ctx context.Context, ids []string) error
}
