package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
)

// LedgerRepository appends and reads the balance audit trail.
type LedgerRepository struct {
	q DBTX
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(q DBTX) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// Append records one balance movement. gameID may be empty.
func (r *LedgerRepository) Append(ctx context.Context, player string, entryType model.LedgerEntryType, amount decimal.Decimal, gameID string) (*model.LedgerEntry, error) {
	var game *string
	if gameID != "" {
		game = &gameID
	}

	var e model.LedgerEntry
	err := r.q.QueryRow(ctx, `
		INSERT INTO ledger_entries (player, entry_type, amount, game_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, player, entry_type, amount, game_id, created_at
	`, player, entryType, amount, game).Scan(
		&e.ID,
		&e.Player,
		&e.Type,
		&e.Amount,
		&e.GameID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &e, nil
}

// ListByPlayer returns a player's entries, newest first.
func (r *LedgerRepository) ListByPlayer(ctx context.Context, player string, limit int) ([]*model.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, player, entry_type, amount, game_id, created_at
		FROM ledger_entries
		WHERE player = $1
		ORDER BY id DESC
		LIMIT $2
	`, player, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Player, &e.Type, &e.Amount, &e.GameID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// SumByPlayer returns the signed total of a player's entries of one type.
func (r *LedgerRepository) SumByPlayer(ctx context.Context, player string, entryType model.LedgerEntryType) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE player = $1 AND entry_type = $2
	`, player, entryType).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}
