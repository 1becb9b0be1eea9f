// Package pool implements the bounded, blocking connection pool that
// stands between the coordinator (internal/coordinator) and the
// relational backend. A pool is constructed with a fixed number of
// sessions; callers borrow one with Acquire or AcquireWithDeadline and
// must return it with Release on every exit path, including panics.
//
// Invariant S1 (a session is owned by at most one borrower at a time) and
// P1/P2 (idle+in-use session counts are conserved, waiters are woken
// starvation-free) are upheld by routing every borrow and return through
// a single buffered channel: the channel itself is the runtime's FIFO
// wait queue, so a Release can never starve a waiter in favour of a
// later arrival.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kvstore/internal/telemetry"
)

// ErrAcquireTimeout is returned by AcquireWithDeadline when no session
// becomes available before the deadline elapses.
var ErrAcquireTimeout = errors.New("pool: acquire deadline exceeded")

// ErrPoolClosed is returned by Acquire/AcquireWithDeadline once Close has
// been called.
var ErrPoolClosed = errors.New("pool: closed")

// Pool is a fixed-size set of backend sessions borrowed and returned via
// a buffered channel acting as the idle set.
type Pool struct {
	dsn string

	idle   chan *session
	closed chan struct{}
	once   sync.Once

	mu          sync.Mutex
	established int // sessions successfully dialed at construction
	failed      int // sessions explicitly invalidated since construction

	metrics *telemetry.Metrics
}

// SetMetrics attaches a metrics collector used to record acquire wait
// time and timed-acquire exhaustion. Safe to call once after
// Construct; a Pool with no metrics attached simply skips recording.
func (p *Pool) SetMetrics(m *telemetry.Metrics) {
	p.metrics = m
}

// Construct dials up to size sessions against dsn. It never returns an
// error on partial failure: per the pool's startup contract, the pool is
// usable as long as at least one session was established, and the
// caller (cmd/server) is responsible for treating a pool with zero
// established sessions as startup-fatal via IsConnected.
func Construct(ctx context.Context, dsn string, size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool: size must be positive, got %d", size)
	}

	p := &Pool{
		dsn:    dsn,
		idle:   make(chan *session, size),
		closed: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		s, err := dial(ctx, dsn)
		if err != nil {
			continue
		}
		p.idle <- s
		p.established++
	}

	return p, nil
}

// IsConnected reports whether at least one session is currently live
// (idle or on loan). A pool with zero established sessions never
// recovers on its own; it is a startup-fatal condition, not a transient
// one.
func (p *Pool) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.established-p.failed > 0
}

// Handle is a scoped, single-use borrow of a session. Callers must call
// Release exactly once; a Handle obtained via Pool.Do is released
// automatically, including on panic.
type Handle struct {
	pool    *Pool
	session *session
	mu      sync.Mutex
	done    bool
	invalid bool
}

// Session exposes the borrowed connection to the backend adapter.
func (h *Handle) Session() Querier {
	return h.session
}

// Invalidate marks the session as poisoned: Release will permanently
// remove it from the pool's idle set instead of returning it. Use this
// when the backend adapter observes a protocol-level failure it cannot
// attribute to a transient condition a single repair would fix.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalid = true
}

// Release returns the session to the pool, waking at most one waiter.
// It is idempotent: a second call is a silent no-op, which makes it safe
// to pair with both an explicit call and a deferred one.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	h.done = true
	invalid := h.invalid
	h.mu.Unlock()

	h.pool.release(h.session, invalid)
}

// Acquire blocks until a session is available and returns a Handle
// bound to it. It accepts no deadline and is uninterruptible at this
// layer, matching the contract's non-timed variant; callers that need a
// bound should use AcquireWithDeadline.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	start := time.Now()
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case s := <-p.idle:
		p.observeWait(start)
		return p.wrap(ctx, s), nil
	}
}

// AcquireWithDeadline blocks until a session is available or d elapses,
// whichever comes first. On timeout it returns ErrAcquireTimeout and the
// caller owns no session.
func (p *Pool) AcquireWithDeadline(ctx context.Context, d time.Duration) (*Handle, error) {
	start := time.Now()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case s := <-p.idle:
		p.observeWait(start)
		return p.wrap(ctx, s), nil
	case <-timer.C:
		if p.metrics != nil {
			p.metrics.PoolExhaustedTotal.Inc()
		}
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) observeWait(start time.Time) {
	if p.metrics != nil {
		p.metrics.PoolWaitSeconds.Observe(time.Since(start).Seconds())
	}
}

// wrap performs the on-borrow health check and repair before handing the
// session to the caller: a failed probe triggers exactly one reset, and
// the session is returned either way. The next operation against it will
// surface cleanly if the reset itself failed.
func (p *Pool) wrap(ctx context.Context, s *session) *Handle {
	if err := s.ping(ctx); err != nil {
		_ = s.reset(ctx)
	}
	return &Handle{pool: p, session: s}
}

// release is the common path for returning a session, whether healthy or
// poisoned.
func (p *Pool) release(s *session, invalid bool) {
	if invalid {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		s.close(context.Background())
		return
	}

	// Check closed first: once Close has run, a plain two-way select could
	// still pick the idle send and leave the session unclosed.
	select {
	case <-p.closed:
		s.close(context.Background())
		return
	default:
	}

	select {
	case p.idle <- s:
	case <-p.closed:
		s.close(context.Background())
	}
}

// Do borrows a session, runs fn, and guarantees Release runs on every
// exit path including a panic inside fn. This is the preferred entry
// point for the backend adapter; Acquire/AcquireWithDeadline are exposed
// directly for callers (and tests) that need the deadline variant's
// error without wrapping their whole operation in a closure.
func (p *Pool) Do(ctx context.Context, fn func(Querier) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	return fn(h.Session())
}

// Close drains and closes every currently idle session. Sessions on loan
// at the time of Close are closed as they are released. Close does not
// block waiting for outstanding borrows to return.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.closed)
		for {
			select {
			case s := <-p.idle:
				s.close(context.Background())
			default:
				return
			}
		}
	})
}
