// Package cache provides byte caching for derived data.
//
// The relationship and timeline index stores its recomputable edge sets
// here. A cache entry is never a source of truth: anything cached can be
// rebuilt from the node store, and writers invalidate entries eagerly.
//
// Implementations:
//   - MemoryCache: in-process TTL cache, the default
//   - RedisCache: shared cache for multi-instance deployments
//   - NullCache: disables caching entirely
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with per-entry TTLs.
type Cache interface {
	// Get retrieves a value. The bool reports a hit; misses are not errors.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A non-positive ttl stores without expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
