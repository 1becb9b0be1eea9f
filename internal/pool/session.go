package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of a live connection the backend adapter
// (internal/store) needs from a borrowed session. Exposing it as an
// interface keeps the adapter testable against a fake without dragging
// pgx into its tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// CommandTag reports how many rows a statement affected.
type CommandTag interface {
	RowsAffected() int64
}

// Row is the scan surface for a single-row query result.
type Row interface {
	Scan(dest ...any) error
}

// rawConn is the narrow slice of *pgx.Conn the pool itself drives
// directly (dial, health probe, reset, close, and the query surface).
// Separating it from Querier lets tests substitute a fake connection
// without opening a real socket.
type rawConn interface {
	Querier
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type pgxConn struct{ conn *pgx.Conn }

func (c *pgxConn) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }
func (c *pgxConn) Close(ctx context.Context) error { return c.conn.Close(ctx) }
func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}
func (c *pgxConn) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

// session is one live, exclusive handle to the backend. It is owned
// either by the pool's idle set or by exactly one borrower at a time
// (invariant S1); the pool never hands the same *session to two
// borrowers concurrently.
type session struct {
	dsn  string
	conn rawConn
}

// dialConn is the seam tests substitute to avoid opening a real socket.
var dialConn = func(ctx context.Context, dsn string) (rawConn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

func dial(ctx context.Context, dsn string) (*session, error) {
	conn, err := dialConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: dial session: %w", err)
	}
	return &session{dsn: dsn, conn: conn}, nil
}

// ping is the liveness probe used on borrow. A short, fixed timeout keeps
// a single unhealthy session from stalling every acquirer behind it.
func (s *session) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.conn.Ping(ctx)
}

// reset closes the underlying connection and dials a replacement. Its
// result is deliberately not propagated to the caller: per the pool's
// repair contract, the session is handed back regardless, and the next
// operation on it will fail cleanly if the reset itself failed.
func (s *session) reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_ = s.conn.Close(ctx)

	conn, err := dialConn(ctx, s.dsn)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *session) close(ctx context.Context) {
	_ = s.conn.Close(ctx)
}

// Exec and QueryRow satisfy Querier by delegating to the live connection.
func (s *session) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

func (s *session) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return s.conn.QueryRow(ctx, sql, args...)
}
