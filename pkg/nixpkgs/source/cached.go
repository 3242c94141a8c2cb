package source

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/cache"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/observability"
)

const keyTypeEval = "eval"

// Cached serves evaluations from a cache, falling back to Inner.
type Cached struct {
	Inner  Loader
	Cache  cache.Cache
	Keyer  cache.Keyer
	TTL    time.Duration
	Logger *log.Logger
}

// NewCached wraps inner. A nil cache disables caching, a nil keyer uses
// [cache.DefaultKeyer] and ttl <= 0 uses [cache.TTLEvaluation].
func NewCached(inner Loader, c cache.Cache, keyer cache.Keyer, ttl time.Duration, logger *log.Logger) *Cached {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if ttl <= 0 {
		ttl = cache.TTLEvaluation
	}
	if logger == nil {
		logger = log.New(nil)
	}
	return &Cached{Inner: inner, Cache: c, Keyer: keyer, TTL: ttl, Logger: logger}
}

// Load implements [Loader].
func (c *Cached) Load(ctx context.Context, gitURL, revision string) ([]byte, error) {
	data, _, err := c.LoadWithCacheInfo(ctx, gitURL, revision)
	return data, err
}

// LoadWithCacheInfo is Load that also reports whether the cache was hit.
// Cache errors are logged and treated as misses.
func (c *Cached) LoadWithCacheInfo(ctx context.Context, gitURL, revision string) ([]byte, bool, error) {
	key := c.Keyer.EvalKey(gitURL, revision)

	data, hit, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.Logger.Warn("cache read failed", "error", err)
	}
	if err == nil && hit {
		observability.Cache().OnCacheHit(ctx, keyTypeEval)
		c.Logger.Debug("evaluation cache hit", "revision", revision)
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, keyTypeEval)

	data, err = c.Inner.Load(ctx, gitURL, revision)
	if err != nil {
		return nil, false, err
	}

	if err := c.Cache.Set(ctx, key, data, c.TTL); err != nil {
		c.Logger.Warn("cache write failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, keyTypeEval, len(data))
	}
	return data, false, nil
}
