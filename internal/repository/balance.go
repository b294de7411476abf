package repository

import (
	"context"
	"fmt"

	"coinflip-settlement/internal/model"
)

// BalanceRepository persists player balances.
type BalanceRepository struct {
	q DBTX
}

// NewBalanceRepository creates a new BalanceRepository instance.
func NewBalanceRepository(q DBTX) *BalanceRepository {
	return &BalanceRepository{q: q}
}

const balanceColumns = `player, spendable_wager, spendable_reward, locked_wager, updated_at`

func scanBalance(row interface{ Scan(...any) error }) (*model.PlayerBalance, error) {
	var b model.PlayerBalance
	err := row.Scan(
		&b.Player,
		&b.SpendableWager,
		&b.SpendableReward,
		&b.LockedWager,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Get retrieves a player's balance.
// Returns ErrNotFound if the player has never held funds.
func (r *BalanceRepository) Get(ctx context.Context, player string) (*model.PlayerBalance, error) {
	row := r.q.QueryRow(ctx, `SELECT `+balanceColumns+` FROM player_balances WHERE player = $1`, player)
	b, err := scanBalance(row)
	if err != nil {
		return nil, notFound(err, "balance")
	}
	return b, nil
}

// GetForUpdate returns the player's balance, creating an empty one if needed,
// and locks the row until the surrounding transaction ends.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, player string) (*model.PlayerBalance, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO player_balances (player) VALUES ($1)
		ON CONFLICT (player) DO NOTHING
	`, player); err != nil {
		return nil, fmt.Errorf("failed to ensure balance: %w", err)
	}

	row := r.q.QueryRow(ctx, `SELECT `+balanceColumns+` FROM player_balances WHERE player = $1 FOR UPDATE`, player)
	b, err := scanBalance(row)
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance: %w", err)
	}
	return b, nil
}

// Save writes every field of b and refreshes UpdatedAt.
func (r *BalanceRepository) Save(ctx context.Context, b *model.PlayerBalance) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO player_balances (player, spendable_wager, spendable_reward, locked_wager, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (player) DO UPDATE SET
			spendable_wager = EXCLUDED.spendable_wager,
			spendable_reward = EXCLUDED.spendable_reward,
			locked_wager = EXCLUDED.locked_wager,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, b.Player, b.SpendableWager, b.SpendableReward, b.LockedWager).Scan(&b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}
