package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"storyteller-api/internal/domain/entity"
	"storyteller-api/internal/domain/repository"
)

// CharacterRepository 角色仓储实现
type CharacterRepository struct {
	client *Client
}

// NewCharacterRepository 创建角色仓储
func NewCharacterRepository(client *Client) *CharacterRepository {
	return &CharacterRepository{client: client}
}

// Create 创建角色
func (r *CharacterRepository) Create(ctx context.Context, character *entity.Character) error {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(character).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create character: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取角色
func (r *CharacterRepository) GetByID(ctx context.Context, id string) (*entity.Character, error) {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.GetByID")
	defer span.End()

	var character entity.Character
	if err := getDB(ctx, r.client.db).First(&character, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	return &character, nil
}

// Update 更新角色
func (r *CharacterRepository) Update(ctx context.Context, character *entity.Character) error {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(character).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update character: %w", err)
	}
	return nil
}

// Delete 删除角色及其故事关联
func (r *CharacterRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("character_id = ?", id).Delete(&entity.StoryCharacter{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete character links: %w", err)
	}
	if err := db.Delete(&entity.Character{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete character: %w", err)
	}
	return nil
}

// List 获取角色列表
func (r *CharacterRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Character], error) {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.List")
	defer span.End()

	query := getDB(ctx, r.client.db).Model(&entity.Character{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count characters: %w", err)
	}

	var characters []*entity.Character
	if err := query.Order("name ASC").Offset(pagination.Offset()).Limit(pagination.Limit()).Find(&characters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return repository.NewPagedResult(characters, total, pagination), nil
}

// Attach 将角色加入故事，冲突时更新定位
func (r *CharacterRepository) Attach(ctx context.Context, link *entity.StoryCharacter) error {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.Attach")
	defer span.End()

	err := getDB(ctx, r.client.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "story_id"}, {Name: "character_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(link).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to attach character: %w", err)
	}
	return nil
}

// Detach 从故事移除角色
func (r *CharacterRepository) Detach(ctx context.Context, storyID, characterID string) error {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.Detach")
	defer span.End()

	err := getDB(ctx, r.client.db).
		Where("story_id = ? AND character_id = ?", storyID, characterID).
		Delete(&entity.StoryCharacter{}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to detach character: %w", err)
	}
	return nil
}

// castRow 角色表联查结果
type castRow struct {
	entity.Character
	Role entity.CharacterRole
}

// ListCast 获取故事角色表
func (r *CharacterRepository) ListCast(ctx context.Context, storyID string) ([]*entity.CastMember, error) {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.ListCast")
	defer span.End()

	var rows []castRow
	err := getDB(ctx, r.client.db).
		Table("characters").
		Select("characters.*, story_characters.role AS role").
		Joins("JOIN story_characters ON story_characters.character_id = characters.id").
		Where("story_characters.story_id = ?", storyID).
		Order("story_characters.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story cast: %w", err)
	}

	cast := make([]*entity.CastMember, 0, len(rows))
	for i := range rows {
		character := rows[i].Character
		cast = append(cast, &entity.CastMember{Character: &character, Role: rows[i].Role})
	}
	return cast, nil
}
