package ratelimiter

import (
	"context"
	"time"
)

// Store abstracts the shared TTL-capable key-value store the limiter counts
// against. Every operation must be atomic with respect to other callers of the
// same key at the store level; the limiter relies on nothing stronger. A Store
// performs no retries and no caching, and propagates failures unchanged.
type Store interface {
	// Get returns the integer value of key, or 0 when the key is absent.
	Get(ctx context.Context, key string) (int64, error)

	// Incr atomically increments key and returns the new value,
	// creating the key at 1 if it does not exist.
	Incr(ctx context.Context, key string) (int64, error)

	// SetEx sets key to value with the given time to live,
	// replacing any existing value and expiry.
	SetEx(ctx context.Context, key string, value int64, ttl time.Duration) error

	// TTL returns the remaining time to live of key. The result is negative
	// when the key exists without an expiry or does not exist at all
	// (mirroring the Redis TTL command's -1 and -2 replies).
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
