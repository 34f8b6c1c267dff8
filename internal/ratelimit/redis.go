package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared CounterStore for multi-instance deployments.
// Window counters use INCR with an expiry set on the window's first hit;
// blocks are separate keys with their own TTL.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing window counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("starting window: %w", err)
		}
	}
	return count, nil
}

func (s *RedisStore) Block(ctx context.Context, key string, d time.Duration) error {
	if err := s.client.Set(ctx, blockKey(key), "1", d).Err(); err != nil {
		return fmt.Errorf("setting block: %w", err)
	}
	return nil
}

func (s *RedisStore) BlockRemaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, blockKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading block ttl: %w", err)
	}
	// TTL returns negative durations for missing keys and keys without expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func blockKey(key string) string {
	return key + ":blocked"
}
