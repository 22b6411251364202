// Package cache defines the cache port (interface).
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented cache with TTL semantics. A miss is reported via
// ok=false, not an error; errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close()
}
