// Package coordinator sequences operations between the LRU cache and
// the backend adapter, implementing the write-through / read-through /
// delete-through policies: the backend commit always precedes the
// cache mutation, so the cache can never advertise a value that was
// never durably written.
package coordinator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"kvstore/internal/apperrors"
	"kvstore/internal/cache"
	"kvstore/internal/store"
	"kvstore/internal/telemetry"
)

// Backend is the subset of *store.Store the coordinator depends on,
// named so tests can substitute a fake without a pool or a database.
type Backend interface {
	Upsert(ctx context.Context, key string, value []byte) error
	Select(ctx context.Context, key string) (store.ReadResult, error)
	Delete(ctx context.Context, key string) error
}

// Source reports which tier answered a read, for the response body's
// "(from cache)" / "(from DB)" distinction.
type Source int

const (
	SourceCache Source = iota
	SourceBackend
)

// Coordinator implements §4.B's three policies over a shared cache and
// backend. A single in-flight backend query is shared across
// concurrently arriving read-misses for the same key, so a stampede on
// a hot missing key does not multiply backend load; this coalescing
// does not change ordering semantics, it only deduplicates identical
// reads.
type Coordinator struct {
	cache   *cache.Cache
	backend Backend
	logger  *zap.Logger
	group   singleflight.Group

	metrics *telemetry.Metrics
}

func New(c *cache.Cache, backend Backend, logger *zap.Logger) *Coordinator {
	return &Coordinator{cache: c, backend: backend, logger: logger}
}

// SetMetrics attaches a metrics collector used to record cache hit/miss
// counts on read. A Coordinator with no metrics attached simply skips
// recording.
func (c *Coordinator) SetMetrics(m *telemetry.Metrics) {
	c.metrics = m
}

// Read implements read-through: cache probe first, then a (possibly
// shared) backend query on miss, filling the cache before returning.
func (c *Coordinator) Read(ctx context.Context, key string) ([]byte, Source, error) {
	if value, ok := c.cache.Get(key); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return value, SourceCache, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	// A backend read failure is deliberately collapsed into the same
	// "not found" outcome as a genuine miss (§7): the caller cannot
	// distinguish the two, only this package's logs can.
	result, err, _ := c.group.Do(key, func() (any, error) {
		result, selectErr := c.backend.Select(ctx, key)
		if selectErr != nil {
			c.logger.Warn("read-through select failed, treating as not-found",
				zap.String("key", key), zap.Error(selectErr))
			return store.ReadResult{Found: false}, nil
		}
		if result.Found {
			c.cache.Put(key, result.Value)
		}
		return result, nil
	})
	if err != nil {
		return nil, SourceBackend, apperrors.NotFound(key)
	}

	readResult := result.(store.ReadResult)
	if !readResult.Found {
		return nil, SourceBackend, apperrors.NotFound(key)
	}
	return readResult.Value, SourceBackend, nil
}

// Write implements write-through: backend commit, then cache
// insert-or-replace, in that order. A backend failure leaves the cache
// untouched.
func (c *Coordinator) Write(ctx context.Context, key string, value []byte) error {
	if err := c.backend.Upsert(ctx, key, value); err != nil {
		return apperrors.BackendFailed("upsert", err)
	}
	c.cache.Put(key, value)
	return nil
}

// Delete implements delete-through: backend delete, then cache
// removal, in that order. A backend failure leaves the cache untouched
// (so a previously cached value may still be served until the next
// write or eviction repairs it, per §4.B's accepted staleness window).
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return apperrors.BackendFailed("delete", err)
	}
	c.cache.Remove(key)
	return nil
}

// Snapshot exposes the cache's point-in-time state for the status page.
func (c *Coordinator) Snapshot() cache.State {
	return c.cache.Snapshot()
}
