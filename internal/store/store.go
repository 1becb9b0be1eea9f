// Package store is the backend adapter: it translates the three logical
// key-value operations into parameterised statements executed against a
// single borrowed pool session, and wraps each statement in its own
// circuit breaker so a run of backend failures fails fast instead of
// piling up blocked pool acquisitions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker"

	"kvstore/internal/pool"
	"kvstore/internal/telemetry"
)

// isNoRows reports whether err is pgx's "no rows" sentinel, possibly
// wrapped. It is the only place this package names a concrete pgx type;
// everywhere else it talks to pool.Querier/pool.Row.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

const (
	upsertStmt = `INSERT INTO kv_entries (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	selectStmt = `SELECT value FROM kv_entries WHERE key = $1`
	deleteStmt = `DELETE FROM kv_entries WHERE key = $1`

	createTableStmt = `CREATE TABLE IF NOT EXISTS kv_entries (
		key   text PRIMARY KEY,
		value text NOT NULL
	)`
)

// ReadResult is the tri-state outcome of a read: a value was found, the
// key is absent, or the backend call itself failed. Collapsing "absent"
// and "failed" into a single outcome is the coordinator's decision, not
// this package's.
type ReadResult struct {
	Value []byte
	Found bool
}

// ErrBackendFailed wraps any error returned by a statement, whether a
// driver error or a breaker trip, so callers can test with errors.Is
// without caring which happened.
var ErrBackendFailed = errors.New("store: backend operation failed")

// Store executes the three logical operations against a borrowed
// session from p, one statement per call, each behind its own circuit
// breaker.
type Store struct {
	pool *pool.Pool

	// do is the seam tests substitute to drive a fake pool.Querier
	// without a real *pool.Pool. New wires it to pool.Pool.Do.
	do func(ctx context.Context, fn func(pool.Querier) error) error

	upsertBreaker *gobreaker.CircuitBreaker
	selectBreaker *gobreaker.CircuitBreaker
	deleteBreaker *gobreaker.CircuitBreaker

	metrics *telemetry.Metrics
}

// SetMetrics attaches a metrics collector used to record per-statement
// latency and outcome. A Store with no metrics attached simply skips
// recording.
func (s *Store) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.BackendOperations.WithLabelValues(operation, outcome).Inc()
	s.metrics.BackendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// New constructs a Store over p. Each statement gets its own breaker so
// that, for example, a string of failing deletes does not also trip
// reads.
func New(p *pool.Pool) *Store {
	return &Store{
		pool:          p,
		do:            p.Do,
		upsertBreaker: newBreaker("store.upsert"),
		selectBreaker: newBreaker("store.select"),
		deleteBreaker: newBreaker("store.delete"),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures >= 3
		},
	})
}

// Migrate creates the backend table if it does not already exist. It is
// idempotent and safe to call on every process start.
func (s *Store) Migrate(ctx context.Context) error {
	return s.do(ctx, func(q pool.Querier) error {
		_, err := q.Exec(ctx, createTableStmt)
		if err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
		return nil
	})
}

// Upsert writes value for key, inserting or replacing as needed. A
// non-nil error means the write-through caller must not touch the
// cache.
func (s *Store) Upsert(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	_, err := s.upsertBreaker.Execute(func() (any, error) {
		return nil, s.do(ctx, func(q pool.Querier) error {
			_, err := q.Exec(ctx, upsertStmt, key, string(value))
			return err
		})
	})
	s.observe("upsert", start, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendFailed, err)
	}
	return nil
}

// Select returns the value for key. ReadResult.Found is false both when
// the key is genuinely absent and when the backend call failed; the err
// return distinguishes the two for callers (such as metrics) that care,
// while the coordinator treats both the same way per the read-through
// contract.
//
// A key simply being absent is not a backend failure, so it must not
// trip the breaker: the callback swallows pgx.ErrNoRows and reports it
// out-of-band instead of as the breaker's error.
func (s *Store) Select(ctx context.Context, key string) (ReadResult, error) {
	start := time.Now()
	var found bool
	var value string

	_, err := s.selectBreaker.Execute(func() (any, error) {
		txErr := s.do(ctx, func(q pool.Querier) error {
			return q.QueryRow(ctx, selectStmt, key).Scan(&value)
		})
		switch {
		case txErr == nil:
			found = true
			return nil, nil
		case isNoRows(txErr):
			found = false
			return nil, nil
		default:
			return nil, txErr
		}
	})
	s.observe("select", start, err)

	if err != nil {
		return ReadResult{}, fmt.Errorf("%w: %v", ErrBackendFailed, err)
	}
	if !found {
		return ReadResult{Found: false}, nil
	}
	return ReadResult{Value: []byte(value), Found: true}, nil
}

// Delete removes key. A non-nil error means the delete-through caller
// must not touch the cache.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := s.deleteBreaker.Execute(func() (any, error) {
		return nil, s.do(ctx, func(q pool.Querier) error {
			_, err := q.Exec(ctx, deleteStmt, key)
			return err
		})
	})
	s.observe("delete", start, err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendFailed, err)
	}
	return nil
}
