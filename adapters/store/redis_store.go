package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/basetips/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the NonceLedger interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ports.NonceLedger = &RedisStore{}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "basetips:nonce:",
	}
}

// Consume marks a nonce as consumed in Redis. SETNX makes the check and the
// write a single step, so concurrent verifications cannot both win.
func (s *RedisStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	key := s.prefix + nonce

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	return ok, nil
}

// IsConsumed checks if a nonce is consumed in Redis
func (s *RedisStore) IsConsumed(ctx context.Context, nonce string) (bool, error) {
	key := s.prefix + nonce

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}

	return val > 0, nil
}
