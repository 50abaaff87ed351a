package postgres

import (
	"context"
	"fmt"

	"storyteller-api/internal/domain/entity"
)

// LLMProviderRepository 文本生成后端仓储实现
type LLMProviderRepository struct {
	client *Client
}

// NewLLMProviderRepository 创建文本生成后端仓储
func NewLLMProviderRepository(client *Client) *LLMProviderRepository {
	return &LLMProviderRepository{client: client}
}

// Create 创建 provider
func (r *LLMProviderRepository) Create(ctx context.Context, provider *entity.LLMProvider) error {
	ctx, span := tracer.Start(ctx, "postgres.LLMProviderRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(provider).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create llm provider: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取 provider
func (r *LLMProviderRepository) GetByID(ctx context.Context, id string) (*entity.LLMProvider, error) {
	return r.first(ctx, "postgres.LLMProviderRepository.GetByID", "id = ?", id)
}

// GetByName 根据名称获取 provider
func (r *LLMProviderRepository) GetByName(ctx context.Context, name string) (*entity.LLMProvider, error) {
	return r.first(ctx, "postgres.LLMProviderRepository.GetByName", "name = ?", name)
}

// GetByRole 获取启用中的默认或备用 provider
func (r *LLMProviderRepository) GetByRole(ctx context.Context, role entity.ProviderRole) (*entity.LLMProvider, error) {
	column := roleColumn(role)
	return r.first(ctx, "postgres.LLMProviderRepository.GetByRole", column+" = ? AND enabled = ?", true, true)
}

func (r *LLMProviderRepository) first(ctx context.Context, spanName, where string, args ...any) (*entity.LLMProvider, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	var provider entity.LLMProvider
	if err := getDB(ctx, r.client.db).Where(where, args...).Order("updated_at DESC").First(&provider).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get llm provider: %w", err)
	}
	return &provider, nil
}

// Update 更新 provider
func (r *LLMProviderRepository) Update(ctx context.Context, provider *entity.LLMProvider) error {
	ctx, span := tracer.Start(ctx, "postgres.LLMProviderRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(provider).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update llm provider: %w", err)
	}
	return nil
}

// Delete 删除 provider
func (r *LLMProviderRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.LLMProviderRepository.Delete")
	defer span.End()

	if err := getDB(ctx, r.client.db).Delete(&entity.LLMProvider{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete llm provider: %w", err)
	}
	return nil
}

// List 获取全部 provider
func (r *LLMProviderRepository) List(ctx context.Context) ([]*entity.LLMProvider, error) {
	ctx, span := tracer.Start(ctx, "postgres.LLMProviderRepository.List")
	defer span.End()

	var providers []*entity.LLMProvider
	if err := getDB(ctx, r.client.db).Order("name ASC").Find(&providers).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list llm providers: %w", err)
	}
	return providers, nil
}

// ClearRole 清除其他 provider 的角色标记
func (r *LLMProviderRepository) ClearRole(ctx context.Context, role entity.ProviderRole, exceptID string) error {
	ctx, span := tracer.Start(ctx, "postgres.LLMProviderRepository.ClearRole")
	defer span.End()

	err := getDB(ctx, r.client.db).Model(&entity.LLMProvider{}).
		Where("id <> ?", exceptID).
		Update(roleColumn(role), false).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear llm provider role: %w", err)
	}
	return nil
}

func roleColumn(role entity.ProviderRole) string {
	if role == entity.ProviderRoleAlternate {
		return "is_alternate"
	}
	return "is_default"
}

// TTSProviderRepository 语音合成后端仓储实现
type TTSProviderRepository struct {
	client *Client
}

// NewTTSProviderRepository 创建语音合成后端仓储
func NewTTSProviderRepository(client *Client) *TTSProviderRepository {
	return &TTSProviderRepository{client: client}
}

// Create 创建语音后端
func (r *TTSProviderRepository) Create(ctx context.Context, provider *entity.TTSProvider) error {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(provider).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create tts provider: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取语音后端
func (r *TTSProviderRepository) GetByID(ctx context.Context, id string) (*entity.TTSProvider, error) {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.GetByID")
	defer span.End()

	var provider entity.TTSProvider
	if err := getDB(ctx, r.client.db).First(&provider, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tts provider: %w", err)
	}
	return &provider, nil
}

// GetDefault 获取默认语音后端
func (r *TTSProviderRepository) GetDefault(ctx context.Context) (*entity.TTSProvider, error) {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.GetDefault")
	defer span.End()

	var provider entity.TTSProvider
	if err := getDB(ctx, r.client.db).Where("is_default = ? AND enabled = ?", true, true).First(&provider).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get default tts provider: %w", err)
	}
	return &provider, nil
}

// Update 更新语音后端
func (r *TTSProviderRepository) Update(ctx context.Context, provider *entity.TTSProvider) error {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(provider).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update tts provider: %w", err)
	}
	return nil
}

// Delete 删除语音后端
func (r *TTSProviderRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.Delete")
	defer span.End()

	if err := getDB(ctx, r.client.db).Delete(&entity.TTSProvider{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete tts provider: %w", err)
	}
	return nil
}

// List 获取全部语音后端
func (r *TTSProviderRepository) List(ctx context.Context) ([]*entity.TTSProvider, error) {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.List")
	defer span.End()

	var providers []*entity.TTSProvider
	if err := getDB(ctx, r.client.db).Order("name ASC").Find(&providers).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list tts providers: %w", err)
	}
	return providers, nil
}

// ClearDefault 清除其他语音后端的默认标记
func (r *TTSProviderRepository) ClearDefault(ctx context.Context, exceptID string) error {
	ctx, span := tracer.Start(ctx, "postgres.TTSProviderRepository.ClearDefault")
	defer span.End()

	err := getDB(ctx, r.client.db).Model(&entity.TTSProvider{}).
		Where("id <> ?", exceptID).
		Update("is_default", false).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear default tts provider: %w", err)
	}
	return nil
}
