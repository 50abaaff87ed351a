package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// SpeedButtonRepository 快捷引导仓储实现
type SpeedButtonRepository struct {
	client *Client
}

// NewSpeedButtonRepository 创建快捷引导仓储
func NewSpeedButtonRepository(client *Client) *SpeedButtonRepository {
	return &SpeedButtonRepository{client: client}
}

// Create 创建快捷引导
func (r *SpeedButtonRepository) Create(ctx context.Context, button *entity.SpeedButton) error {
	ctx, span := tracer.Start(ctx, "postgres.SpeedButtonRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(button).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create speed button: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取快捷引导
func (r *SpeedButtonRepository) GetByID(ctx context.Context, id string) (*entity.SpeedButton, error) {
	ctx, span := tracer.Start(ctx, "postgres.SpeedButtonRepository.GetByID")
	defer span.End()

	var button entity.SpeedButton
	if err := getDB(ctx, r.client.db).First(&button, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get speed button: %w", err)
	}
	return &button, nil
}

// Update 更新快捷引导
func (r *SpeedButtonRepository) Update(ctx context.Context, button *entity.SpeedButton) error {
	ctx, span := tracer.Start(ctx, "postgres.SpeedButtonRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(button).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update speed button: %w", err)
	}
	return nil
}

// Delete 删除快捷引导
func (r *SpeedButtonRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.SpeedButtonRepository.Delete")
	defer span.End()

	if err := getDB(ctx, r.client.db).Delete(&entity.SpeedButton{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete speed button: %w", err)
	}
	return nil
}

// List 按展示顺序获取快捷引导
func (r *SpeedButtonRepository) List(ctx context.Context) ([]*entity.SpeedButton, error) {
	ctx, span := tracer.Start(ctx, "postgres.SpeedButtonRepository.List")
	defer span.End()

	var buttons []*entity.SpeedButton
	if err := getDB(ctx, r.client.db).Order("display_order ASC").Order("label ASC").Find(&buttons).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list speed buttons: %w", err)
	}
	return buttons, nil
}

// Reorder 在一个事务内按 ids 顺序重写 display_order
func (r *SpeedButtonRepository) Reorder(ctx context.Context, ids []string) error {
	ctx, span := tracer.Start(ctx, "postgres.SpeedButtonRepository.Reorder")
	defer span.End()

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&entity.SpeedButton{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
			return err
		}
		if int(n) != len(ids) {
			return repository.ErrNotFound
		}
		for i, id := range ids {
			if err := tx.Model(&entity.SpeedButton{}).Where("id = ?", id).Update("display_order", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to reorder speed buttons: %w", err)
	}
	return nil
}
