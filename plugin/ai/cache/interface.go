// Package cache caches query embeddings in process, optionally backed by a shared L2.
package cache

import (
	"context"
	"time"
)

// CacheService is a byte cache keyed by string.
type CacheService interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl. A non-positive ttl uses the service default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes key, or every key with the given prefix when pattern ends in '*'.
	Invalidate(ctx context.Context, pattern string) error
}

// Stats reports cache effectiveness.
type Stats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	L2Hits    uint64 `json:"l2_hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}
