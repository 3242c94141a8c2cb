// Package cache stores nix evaluation output between runs.
//
// Evaluating nixpkgs takes minutes; the resulting JSON only depends on the
// repository URL and revision. [Cache] stores it under a key derived from
// both, so a second run against the same revision skips nix entirely.
//
// # Backends
//
//   - [FileCache]: one file per entry under the user cache directory
//   - [RedisCache]: a shared Redis server
//   - [NullCache]: stores nothing (--no-cache)
//
// # Keys
//
// Keys come from a [Keyer]. [ScopedKeyer] prefixes every key, which keeps
// several tools apart on one Redis server.
package cache

import (
	"context"
	"time"
)

// TTLEvaluation is the default lifetime of a cached evaluation.
const TTLEvaluation = 24 * time.Hour

// Cache is a byte store with per-entry expiry. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the stored value and true, or false on a miss. Expired
	// entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// NullCache is a no-op cache that never stores anything.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get always returns a cache miss.
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set does nothing.
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete does nothing.
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Close does nothing.
func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
