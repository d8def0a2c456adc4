package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepositoryImpl implements SequenceRepository on top of the sequence_counters table
type SequenceRepositoryImpl struct {
	*BaseRepository[models.SequenceCounter, struct{}]
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &SequenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SequenceCounter, struct{}](db),
	}
}

// Increment upserts the counter row and returns the incremented value in one statement:
// INSERT ... ON CONFLICT (name) DO UPDATE SET last_value = last_value + 1 RETURNING last_value
func (r *SequenceRepositoryImpl) Increment(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	counter := models.SequenceCounter{
		Name:      name,
		LastValue: 1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_value": gorm.Expr("sequence_counters.last_value + 1"),
				"updated_at": now,
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "last_value"}}},
	).Create(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", name, err)
	}

	return counter.LastValue, nil
}

// Current returns the last value handed out for name, 0 when the counter does not exist
func (r *SequenceRepositoryImpl) Current(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)

	var counter models.SequenceCounter
	err := db.Where("name = ?", name).Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", name, err)
	}

	return counter.LastValue, nil
}
