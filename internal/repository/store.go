// Package repository provides the PostgreSQL data access layer.
//
// Every keyed record (player balance, stats, modifier, day buckets,
// leaderboard entry) has its own row. The ForUpdate readers create the row
// if it is missing and lock it, so a settlement that runs inside WithTx
// performs one atomic read-modify-write per key.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a unique key.
var ErrDuplicate = errors.New("already exists")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// runs unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to the same connection or
// transaction.
type Repositories struct {
	Balances    *BalanceRepository
	Stats       *StatsRepository
	Modifiers   *ModifierRepository
	Games       *GameRepository
	Ledger      *LedgerRepository
	Analytics   *AnalyticsRepository
	Leaderboard *LeaderboardRepository
}

// New binds all repositories to q.
func New(q DBTX) *Repositories {
	return &Repositories{
		Balances:    NewBalanceRepository(q),
		Stats:       NewStatsRepository(q),
		Modifiers:   NewModifierRepository(q),
		Games:       NewGameRepository(q),
		Ledger:      NewLedgerRepository(q),
		Analytics:   NewAnalyticsRepository(q),
		Leaderboard: NewLeaderboardRepository(q),
	}
}

// Store owns the connection pool and opens transactions.
type Store struct {
	pool *pgxpool.Pool
	*Repositories
}

// NewStore creates a Store whose embedded repositories use the pool directly.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, Repositories: New(pool)}
}

// WithTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if err := fn(New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
