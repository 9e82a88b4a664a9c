// Package cache stores region search results in memory or in Redis.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value cache with per-entry expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
