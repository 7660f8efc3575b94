// Package postgres implements the persistence repositories on PostgreSQL
// using pgx. It exists for multi-instance deployments: the unique index on
// (date, owner_id) plus ON CONFLICT refetch absorbs concurrent bucket
// creation, and validation can lock the touched day rows (FOR UPDATE) so
// concurrent conflict checks serialize instead of double-booking.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/event-planner/internal/persistence"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
)

// Querier is the subset of pgx execution methods shared by *pgxpool.Pool
// and pgx.Tx. Repositories are constructed over a Querier so the same code
// runs directly against the pool or inside a transaction opened with
// Store.WithTransaction; row locks taken by the latter hold until commit.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles a pgx connection pool with the schema bootstrap and
// transaction helpers shared by the repositories.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool to the given PostgreSQL URL and verifies the
// connection.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema when missing. Statements are idempotent so the
// bootstrap is safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS days (
			id TEXT PRIMARY KEY,
			date DATE NOT NULL,
			owner_id TEXT NOT NULL,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (date, owner_id)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL CHECK (length(name) > 0 AND length(name) <= 50),
			owner_id TEXT NOT NULL,
			start_utc TIMESTAMPTZ NOT NULL,
			end_utc TIMESTAMPTZ NOT NULL CHECK (start_utc < end_utc),
			display_zone TEXT NOT NULL,
			description TEXT CHECK (description IS NULL OR length(description) <= 255),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_days (
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			day_id TEXT NOT NULL REFERENCES days(id) ON DELETE CASCADE,
			PRIMARY KEY (event_id, day_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_owner_start ON events(owner_id, start_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_event_days_day ON event_days(day_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// WithTransaction executes fn inside a transaction, rolling back on error.
// Callers wrap validate-and-persist sequences here to get the single atomic
// boundary the scheduling engine assumes.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, fn)
}

// mapError translates pgx errors into persistence sentinel errors; anything
// unrecognized passes through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case codeCheckViolation, codeNotNullViolation, codeForeignKeyViolation:
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		}
	}
	return err
}
