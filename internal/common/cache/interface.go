package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations the judging pipeline needs.
// This abstraction allows switching between different cache implementations
// (Redis, local memory) without changing business logic.
type Cache interface {
	// Get retrieves the value for the given key. A missing key returns
	// ("", nil).
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist.
	// Returns true if the key was set, false if it already existed.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Exists checks if one or more keys exist.
	// Returns the number of keys that exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}
