package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/charmemo/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CharacterRepositoryImpl implements CharacterRepository interface
type CharacterRepositoryImpl struct {
	*BaseRepository[models.Character, models.CharacterFilter]
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &CharacterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Character, models.CharacterFilter](db),
	}
}

// ByName retrieves a character by its exact name
func (r *CharacterRepositoryImpl) ByName(ctx context.Context, name string) (*models.Character, error) {
	db := r.getDB(ctx)

	var character models.Character
	err := db.Where("name = ?", name).Take(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find character by name: %w", err)
	}

	return &character, nil
}

// ByFilter retrieves characters based on filter criteria, ordered by id ascending unless orderBy says otherwise
func (r *CharacterRepositoryImpl) ByFilter(ctx context.Context, filter models.CharacterFilter, orderBy string, limit, offset int) ([]*models.Character, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Character{}), filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var characters []*models.Character
	if err := query.Find(&characters).Error; err != nil {
		return nil, fmt.Errorf("failed to find characters by filter: %w", err)
	}

	return characters, nil
}

// Count returns the number of characters matching the filter
func (r *CharacterRepositoryImpl) Count(ctx context.Context, filter models.CharacterFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Character{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count characters: %w", err)
	}

	return count, nil
}

// Exists checks if any character matching the filter exists
func (r *CharacterRepositoryImpl) Exists(ctx context.Context, filter models.CharacterFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DeleteByID deletes the character and returns the removed row via DELETE ... RETURNING
func (r *CharacterRepositoryImpl) DeleteByID(ctx context.Context, id uint64) (*models.Character, error) {
	db := r.getDB(ctx)

	var deleted models.Character
	result := db.Clauses(clause.Returning{}).Where("id = ?", id).Delete(&deleted)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to delete character %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return &deleted, nil
}

func (r *CharacterRepositoryImpl) applyFilter(query *gorm.DB, filter models.CharacterFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	return query
}
