// Package cache memoizes search results in Redis. Keys combine the
// canonical form of the parsed query, the page size and the index
// generation, so a reloaded index never serves results computed against an
// older one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/pkg/resilience"
)

const keyPrefix = "gms:search:"

// Store is the key-value backend. *pkgredis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

type QueryCache struct {
	store      Store
	ttl        time.Duration
	group      singleflight.Group
	breaker    *resilience.CircuitBreaker
	generation atomic.Uint64
	metrics    *metrics.Metrics
	logger     *slog.Logger
	hits       atomic.Int64
	misses     atomic.Int64
}

// New returns a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// SetGeneration switches the cache to the entries of generation gen.
func (c *QueryCache) SetGeneration(gen uint64) {
	c.generation.Store(gen)
}

func (c *QueryCache) Generation() uint64 {
	return c.generation.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Get looks up the result of the canonical query q.
func (c *QueryCache) Get(ctx context.Context, q string, limit int) (*executor.SearchResult, bool) {
	key := c.buildKey(q, limit)
	var (
		data  string
		found bool
	)
	err := c.breaker.Execute(func() error {
		v, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			data, found = v, true
		case pkgredis.IsNilError(err):
		default:
			return err
		}
		return nil
	})
	if err != nil {
		c.logFailure("cache get failed", key, err)
	}
	if !found {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", q, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, q string, limit int, result *executor.SearchResult) {
	key := c.buildKey(q, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logFailure("cache set failed", key, err)
	}
}

// GetOrCompute returns the cached result or computes and stores it.
// Concurrent misses on the same key share one computation. The boolean
// reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q string,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, q, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(q, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// logFailure keeps an open breaker from flooding the log.
func (c *QueryCache) logFailure(msg, key string, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug(msg, "key", key, "error", err)
		return
	}
	c.logger.Error(msg, "key", key, "error", err)
}

// Invalidate deletes every cached result of every generation.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(q string, limit int) string {
	raw := fmt.Sprintf("%s\x00limit=%d", q, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, c.generation.Load(), hash[:16])
}
