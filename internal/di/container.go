// Package di assembles the process's dependency graph from an already
// loaded config: logger, metrics, cache, pool, store, coordinator, and
// router, each built by its own Provide* constructor in the style of the teacher's
// infrastructure/di/providers.go, simplified to plain constructor
// functions instead of a generated wire.go since this graph is small
// and linear.
package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kvstore/internal/cache"
	"kvstore/internal/config"
	"kvstore/internal/coordinator"
	"kvstore/internal/httpapi"
	"kvstore/internal/pool"
	"kvstore/internal/store"
	"kvstore/internal/telemetry"
)

// Container holds every long-lived dependency constructed at startup.
// cmd/server owns its lifetime: Close releases the pool and flushes
// the logger.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *telemetry.Metrics
	Cache       *cache.Cache
	Pool        *pool.Pool
	Store       *store.Store
	Coordinator *coordinator.Coordinator
	Router      *httpapi.Router
}

// ProvideLogger builds the process logger, production JSON encoding or
// development console encoding depending on cfg.Environment.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return telemetry.NewLogger(cfg.Environment)
}

// ProvideMetrics builds the process's Prometheus collector set on its
// own registry.
func ProvideMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics("kvstore")
}

// ProvideCache builds the bounded LRU cache sized to cfg.Cache.Capacity.
func ProvideCache(cfg *config.Config) *cache.Cache {
	return cache.New(cfg.Cache.Capacity)
}

// ProvidePool dials cfg.Pool.Size backend sessions. A pool that never
// established a single live session is returned without error (per
// Construct's contract); the caller decides whether that is
// startup-fatal via Pool.IsConnected.
func ProvidePool(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*pool.Pool, error) {
	p, err := pool.Construct(ctx, cfg.Database.DSN(), cfg.Pool.Size)
	if err != nil {
		return nil, fmt.Errorf("di: construct pool: %w", err)
	}
	p.SetMetrics(metrics)
	return p, nil
}

// ProvideStore builds the backend adapter over p.
func ProvideStore(p *pool.Pool, metrics *telemetry.Metrics) *store.Store {
	s := store.New(p)
	s.SetMetrics(metrics)
	return s
}

// ProvideCoordinator wires the cache and store behind the write-through
// / read-through policies.
func ProvideCoordinator(c *cache.Cache, backend *store.Store, logger *zap.Logger, metrics *telemetry.Metrics) *coordinator.Coordinator {
	coord := coordinator.New(c, backend, logger)
	coord.SetMetrics(metrics)
	return coord
}

// ProvideRouter builds the HTTP dispatcher over the coordinator and
// pool.
func ProvideRouter(coord *coordinator.Coordinator, p *pool.Pool, metrics *telemetry.Metrics, logger *zap.Logger) *httpapi.Router {
	return httpapi.NewRouter(coord, p, metrics, logger)
}

// Build assembles the full dependency graph from cfg. On any failure it
// returns a partially constructed Container's logger (if built) so the
// caller can log the failure before exiting; callers should treat a
// non-nil error as fatal regardless of which fields are populated.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("di: build logger: %w", err)
	}

	metrics := ProvideMetrics()
	c := ProvideCache(cfg)

	p, err := ProvidePool(ctx, cfg, metrics)
	if err != nil {
		return &Container{Logger: logger}, err
	}

	backend := ProvideStore(p, metrics)
	coord := ProvideCoordinator(c, backend, logger, metrics)
	router := ProvideRouter(coord, p, metrics, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Cache:       c,
		Pool:        p,
		Store:       backend,
		Coordinator: coord,
		Router:      router,
	}, nil
}

// Close releases every resource the container owns: pool sessions, then
// the logger's buffered output.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}
