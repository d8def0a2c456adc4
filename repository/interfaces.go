// Package repository provides data access layer implementations and interfaces for database operations
package repository

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks github.com/amirphl/charmemo/repository AuditLogRepository,CharacterRepository,Pinger,SequenceRepository

import (
	"context"

	"github.com/amirphl/charmemo/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint64) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SequenceRepository hands out values of named monotonic counters.
// Increment must be a single atomic read-modify-write at the storage layer:
// concurrent callers never observe the same value for the same name.
type SequenceRepository interface {
	Increment(ctx context.Context, name string) (int64, error)
	// Current returns the last value handed out, or 0 if the counter was never used
	Current(ctx context.Context, name string) (int64, error)
}

// CharacterRepository defines operations for characters.
// Save returns ErrUniqueViolation when the name is already taken and ErrDuplicateID when the id is.
// ByID and ByName return (nil, nil) when nothing matches.
type CharacterRepository interface {
	Repository[models.Character, models.CharacterFilter]
	ByName(ctx context.Context, name string) (*models.Character, error)
	// DeleteByID removes and returns the record in one step; (nil, nil) when absent
	DeleteByID(ctx context.Context, id uint64) (*models.Character, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Save(ctx context.Context, entity *models.AuditLog) error
	ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error)
}

// Pinger reports whether a storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}
