package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector this store exposes at
// /metrics: cache effectiveness, pool contention, and backend latency.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	PoolWaitSeconds   prometheus.Histogram
	PoolExhaustedTotal prometheus.Counter

	BackendOperations *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec
}

// NewMetrics constructs a Metrics bound to a fresh registry, so tests
// can create independent instances without colliding on global
// registration.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Total cache hits on read.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Total cache misses on read.",
		}),
		PoolWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "pool_wait_seconds", Help: "Time spent blocked acquiring a pool session.",
			Buckets: prometheus.DefBuckets,
		}),
		PoolExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pool_exhausted_total", Help: "Total timed acquisitions that exceeded their deadline.",
		}),
		BackendOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backend_operations_total", Help: "Total backend statements executed, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "backend_operation_duration_seconds", Help: "Backend statement latency, by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.CacheHits, m.CacheMisses,
		m.PoolWaitSeconds, m.PoolExhaustedTotal,
		m.BackendOperations, m.BackendDuration,
	)
	return m
}
