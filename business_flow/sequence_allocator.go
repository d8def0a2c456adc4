package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/charmemo/repository"
)

// SequenceAllocator hands out strictly increasing values from named counters.
// Every call performs one atomic storage operation; values are never cached in process.
type SequenceAllocator interface {
	Next(ctx context.Context, counterName string) (int64, error)
	Current(ctx context.Context, counterName string) (int64, error)
}

type SequenceAllocatorImpl struct {
	seqRepo repository.SequenceRepository
}

func NewSequenceAllocator(seqRepo repository.SequenceRepository) SequenceAllocator {
	return &SequenceAllocatorImpl{
		seqRepo: seqRepo,
	}
}

// Next returns the next value of counterName, creating the counter at 1 on first use.
// A failed call consumes nothing.
func (s *SequenceAllocatorImpl) Next(ctx context.Context, counterName string) (int64, error) {
	value, err := s.next(ctx, counterName)
	sequenceAllocationsTotal.WithLabelValues(counterLabel(counterName), resultLabel(err)).Inc()
	return value, err
}

func (s *SequenceAllocatorImpl) next(ctx context.Context, counterName string) (int64, error) {
	name := strings.TrimSpace(counterName)
	if name == "" {
		return 0, newValidationError("COUNTER_NAME_REQUIRED", "Counter name is required")
	}

	value, err := s.seqRepo.Increment(ctx, name)
	if err != nil {
		return 0, newStorageError("SEQUENCE_INCREMENT_FAILED", "Failed to allocate sequence value", err)
	}
	if value <= 0 {
		return 0, NewBusinessErrorf("SEQUENCE_VALUE_INVALID", "Sequence %s returned non-positive value %d", ErrStorageUnavailable, name, value)
	}

	return value, nil
}

// Current returns the last value handed out for counterName, 0 if it was never used
func (s *SequenceAllocatorImpl) Current(ctx context.Context, counterName string) (int64, error) {
	name := strings.TrimSpace(counterName)
	if name == "" {
		return 0, newValidationError("COUNTER_NAME_REQUIRED", "Counter name is required")
	}

	value, err := s.seqRepo.Current(ctx, name)
	if err != nil {
		return 0, newStorageError("SEQUENCE_READ_FAILED", "Failed to read sequence value", err)
	}

	return value, nil
}

// counterLabel keeps the metric label set bounded to non-empty names
func counterLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return name
}
