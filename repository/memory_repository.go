package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/amirphl/charmemo/models"
)

// MemorySequenceRepository keeps counters in process memory. Only safe for a single instance.
type MemorySequenceRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemorySequenceRepository() *MemorySequenceRepository {
	return &MemorySequenceRepository{
		counters: make(map[string]int64),
	}
}

func (r *MemorySequenceRepository) Increment(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name]++
	return r.counters[name], nil
}

func (r *MemorySequenceRepository) Current(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counters[name], nil
}

// Ping always succeeds
func (r *MemorySequenceRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// MemoryCharacterRepository is an in-memory CharacterRepository with a unique name index
type MemoryCharacterRepository struct {
	mu     sync.RWMutex
	byID   map[uint64]*models.Character
	byName map[string]uint64
}

func NewMemoryCharacterRepository() *MemoryCharacterRepository {
	return &MemoryCharacterRepository{
		byID:   make(map[uint64]*models.Character),
		byName: make(map[string]uint64),
	}
}

func (r *MemoryCharacterRepository) Save(ctx context.Context, entity *models.Character) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("failed to save character: nil entity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[entity.Name]; exists {
		return fmt.Errorf("failed to save character %q: %w", entity.Name, ErrUniqueViolation)
	}
	if _, exists := r.byID[entity.ID]; exists {
		return fmt.Errorf("failed to save character %d: %w", entity.ID, ErrDuplicateID)
	}

	stored := *entity
	r.byID[stored.ID] = &stored
	r.byName[stored.Name] = stored.ID
	return nil
}

func (r *MemoryCharacterRepository) ByID(ctx context.Context, id uint64) (*models.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	character, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *character
	return &copied, nil
}

func (r *MemoryCharacterRepository) ByName(ctx context.Context, name string) (*models.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, nil
	}
	copied := *r.byID[id]
	return &copied, nil
}

// ByFilter returns a snapshot ordered by id; orderBy "id DESC" reverses it
func (r *MemoryCharacterRepository) ByFilter(ctx context.Context, filter models.CharacterFilter, orderBy string, limit, offset int) ([]*models.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	characters := make([]*models.Character, 0, len(r.byID))
	for _, character := range r.byID {
		if !matchesCharacterFilter(character, filter) {
			continue
		}
		copied := *character
		characters = append(characters, &copied)
	}
	r.mu.RUnlock()

	slices.SortFunc(characters, func(a, b *models.Character) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if strings.EqualFold(strings.TrimSpace(orderBy), "id DESC") {
		slices.Reverse(characters)
	}

	if offset > 0 {
		if offset >= len(characters) {
			return []*models.Character{}, nil
		}
		characters = characters[offset:]
	}
	if limit > 0 && limit < len(characters) {
		characters = characters[:limit]
	}

	return characters, nil
}

func (r *MemoryCharacterRepository) Count(ctx context.Context, filter models.CharacterFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, character := range r.byID {
		if matchesCharacterFilter(character, filter) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryCharacterRepository) Exists(ctx context.Context, filter models.CharacterFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MemoryCharacterRepository) DeleteByID(ctx context.Context, id uint64) (*models.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	character, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	delete(r.byID, id)
	delete(r.byName, character.Name)
	return character, nil
}

// Ping always succeeds
func (r *MemoryCharacterRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func matchesCharacterFilter(character *models.Character, filter models.CharacterFilter) bool {
	if filter.ID != nil && character.ID != *filter.ID {
		return false
	}
	if filter.Name != nil && character.Name != *filter.Name {
		return false
	}
	if filter.CreatedAfter != nil && character.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && character.CreatedAt.After(*filter.CreatedBefore) {
		return false
	}
	return true
}

// MemoryAuditLogRepository keeps audit entries in insertion order
type MemoryAuditLogRepository struct {
	mu     sync.Mutex
	nextID uint
	logs   []*models.AuditLog
}

func NewMemoryAuditLogRepository() *MemoryAuditLogRepository {
	return &MemoryAuditLogRepository{}
}

func (r *MemoryAuditLogRepository) Save(ctx context.Context, entity *models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entity.ID = r.nextID
	stored := *entity
	r.logs = append(r.logs, &stored)
	return nil
}

// ByFilter returns entries newest first
func (r *MemoryAuditLogRepository) ByFilter(ctx context.Context, filter models.AuditLogFilter, _ string, limit, offset int) ([]*models.AuditLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*models.AuditLog, 0)
	for i := len(r.logs) - 1; i >= 0; i-- {
		entry := r.logs[i]
		if filter.ID != nil && entry.ID != *filter.ID {
			continue
		}
		if filter.CharacterID != nil && (entry.CharacterID == nil || *entry.CharacterID != *filter.CharacterID) {
			continue
		}
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		if filter.Success != nil && (entry.Success == nil || *entry.Success != *filter.Success) {
			continue
		}
		if filter.RequestID != nil && (entry.RequestID == nil || *entry.RequestID != *filter.RequestID) {
			continue
		}
		if filter.CreatedAfter != nil && entry.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && entry.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		copied := *entry
		result = append(result, &copied)
	}

	if offset > 0 {
		if offset >= len(result) {
			return []*models.AuditLog{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
