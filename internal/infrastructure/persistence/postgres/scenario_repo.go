package postgres

import (
	"context"
	"fmt"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// ScenarioRepository 场景仓储实现
type ScenarioRepository struct {
	client *Client
}

// NewScenarioRepository 创建场景仓储
func NewScenarioRepository(client *Client) *ScenarioRepository {
	return &ScenarioRepository{client: client}
}

// Create 创建场景
func (r *ScenarioRepository) Create(ctx context.Context, scenario *entity.Scenario) error {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(scenario).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取场景
func (r *ScenarioRepository) GetByID(ctx context.Context, id string) (*entity.Scenario, error) {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.GetByID")
	defer span.End()

	var scenario entity.Scenario
	if err := getDB(ctx, r.client.db).First(&scenario, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return &scenario, nil
}

// Update 更新场景
func (r *ScenarioRepository) Update(ctx context.Context, scenario *entity.Scenario) error {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(scenario).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	return nil
}

// Delete 删除场景
func (r *ScenarioRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.Delete")
	defer span.End()

	if err := getDB(ctx, r.client.db).Delete(&entity.Scenario{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	return nil
}

// List 获取场景列表
func (r *ScenarioRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Scenario], error) {
	ctx, span := tracer.Start(ctx, "postgres.ScenarioRepository.List")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.Scenario{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count scenarios: %w", err)
	}

	var scenarios []*entity.Scenario
	if err := query.Order("name ASC").Offset(pagination.Offset()).Limit(pagination.Limit()).Find(&scenarios).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return repository.NewPagedResult(scenarios, total, pagination), nil
}
