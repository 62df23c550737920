package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row owned by the user.
var ErrNotFound = errors.New("not found")

// ImportLockID scopes the advisory lock taken before any import for a user
// starts. The lock lives until the surrounding transaction ends.
const ImportLockID int64 = 987654321

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence layer. A Store built by New runs each call on the
// pool; a Store handed to a WithTx callback runs everything on one
// transaction.
type Store struct {
	db   Querier
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// WithTx runs fn inside a single database transaction. Calling WithTx on a
// Store that is already transactional just runs fn on the same transaction.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// AcquireImportLock blocks until the transaction-scoped advisory lock is
// held, serializing concurrent imports. Postgres releases it at commit or
// rollback. Only meaningful inside WithTx.
func (s *Store) AcquireImportLock(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ImportLockID); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// TouchConfig bumps the user's config timestamp. Called from every write path
// that mutates owned entities so "last activity" stays observable without
// signal-style hooks.
func (s *Store) TouchConfig(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_configs (uuid, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
	`, uuid.New(), userID)
	if err != nil {
		return fmt.Errorf("touch config: %w", err)
	}
	return nil
}
