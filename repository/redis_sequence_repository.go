package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sequenceKeyPrefix = "seq:"

// RedisSequenceRepository implements SequenceRepository with INCR on one key per counter
type RedisSequenceRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisSequenceRepository creates a sequence repository backed by redis.
// keyPrefix namespaces the counter keys, e.g. "charmemo:".
func NewRedisSequenceRepository(client redis.UniversalClient, keyPrefix string) SequenceRepository {
	return &RedisSequenceRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisSequenceRepository) key(name string) string {
	return r.keyPrefix + sequenceKeyPrefix + name
}

// Increment atomically increments the counter; a missing key starts from 0 so the first value is 1
func (r *RedisSequenceRepository) Increment(ctx context.Context, name string) (int64, error) {
	value, err := r.client.Incr(ctx, r.key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", name, err)
	}
	return value, nil
}

// Current returns the counter value, 0 when the key does not exist
func (r *RedisSequenceRepository) Current(ctx context.Context, name string) (int64, error) {
	value, err := r.client.Get(ctx, r.key(name)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", name, err)
	}
	return value, nil
}
