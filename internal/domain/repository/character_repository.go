package repository

import (
	"context"

	"storyteller-api/internal/domain/entity"
)

// CharacterRepository 角色仓储接口
type CharacterRepository interface {
	Create(ctx context.Context, character *entity.Character) error
	GetByID(ctx context.Context, id string) (*entity.Character, error)
	Update(ctx context.Context, character *entity.Character) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Character], error)

	// Attach 将角色加入故事；重复加入时更新定位
	Attach(ctx context.Context, link *entity.StoryCharacter) error

	// Detach 从故事移除角色
	Detach(ctx context.Context, storyID, characterID string) error

	// ListCast 获取故事角色表，按加入顺序
	ListCast(ctx context.Context, storyID string) ([]*entity.CastMember, error)
}
