package httpapi

import (
	"runtime"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kvstore/internal/coordinator"
	"kvstore/internal/pool"
	"kvstore/internal/telemetry"
)

// Router builds the dispatcher's HTTP handler: the three key-value
// verbs of §6, the status page, and the supplemented health/ready/
// metrics surface of SPEC_FULL.md §11.
type Router struct {
	handlers *Handlers
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// NewRouter constructs a Router over the given coordinator and pool.
// metrics may be nil; a nil metrics collector simply omits /metrics.
func NewRouter(c *coordinator.Coordinator, p *pool.Pool, metrics *telemetry.Metrics, logger *zap.Logger) *Router {
	return &Router{
		handlers: NewHandlers(c, p, logger),
		metrics:  metrics,
		logger:   logger,
	}
}

// Setup wires every route and returns the assembled handler.
func (rt *Router) Setup() chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(rt.logger))
	router.Use(BoundedConcurrency(runtime.GOMAXPROCS(0)))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", rt.handlers.Healthz)
	router.Get("/readyz", rt.handlers.Readyz)

	if rt.metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.metrics.Registry, promhttp.HandlerOpts{}))
	}

	router.Post("/create", rt.handlers.Create)
	router.Get("/read", rt.handlers.Read)
	router.Delete("/delete", rt.handlers.Delete)
	router.Get("/cache-status", rt.handlers.CacheStatus)

	return router
}
