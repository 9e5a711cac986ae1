package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a go-redis client. It is a thin
// adapter: key construction aside, every method maps to a single Redis
// command, so the per-key atomicity the limiter depends on is exactly the
// atomicity of GET, INCR, SET EX, TTL and DEL.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Store backed by the given Redis client. The client's
// lifecycle (connection pooling, timeouts, closing) stays with the caller.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the integer value of key, or 0 when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

// Incr atomically increments key, creating it at 1 when absent.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// SetEx sets key to value with the given time to live.
func (s *RedisStore) SetEx(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// TTL returns the remaining time to live of key. go-redis already reports the
// Redis sentinel replies as negative durations (-1 for no expiry, -2 for a
// missing key), which is the contract Store requires.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

// Del removes key.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
