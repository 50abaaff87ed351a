package repository

import (
	"context"

	"storyteller-api/internal/domain/entity"
)

// ScenarioRepository 场景仓储接口
type ScenarioRepository interface {
	Create(ctx context.Context, scenario *entity.Scenario) error
	GetByID(ctx context.Context, id string) (*entity.Scenario, error)
	Update(ctx context.Context, scenario *entity.Scenario) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Scenario], error)
}
