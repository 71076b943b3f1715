package domain

import (
	"context"
	"time"
)

// KVStore is a small expiring key-value store used for rate-limit counters,
// circuit-breaker state, short-TTL caches, and cooldowns. Implementations
// must provide atomic Incr.
type KVStore interface {
	// Get returns the value and true when the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes the value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments an integer counter (created at 1 if
	// missing) and returns the new value. A counter created by Incr has no
	// expiry until Expire is called.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the remaining lifetime of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining lifetime and true if the key exists; keys
	// without an expiry report ok with a zero duration.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	Delete(ctx context.Context, key string) error
}
