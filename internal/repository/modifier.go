package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"coinflip-settlement/internal/model"
)

// ModifierRepository persists house-edge modifiers, at most one per player.
type ModifierRepository struct {
	q DBTX
}

// NewModifierRepository creates a new ModifierRepository instance.
func NewModifierRepository(q DBTX) *ModifierRepository {
	return &ModifierRepository{q: q}
}

// Get retrieves the player's modifier, or ErrNotFound if they hold none.
func (r *ModifierRepository) Get(ctx context.Context, player string) (*model.HouseEdgeModifier, error) {
	return r.get(ctx, player, "")
}

// GetForUpdate retrieves and locks the player's modifier. A player without
// one gets (nil, nil) so callers can hand the result straight to the
// settlement pipeline.
func (r *ModifierRepository) GetForUpdate(ctx context.Context, player string) (*model.HouseEdgeModifier, error) {
	m, err := r.get(ctx, player, " FOR UPDATE")
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return m, err
}

func (r *ModifierRepository) get(ctx context.Context, player, suffix string) (*model.HouseEdgeModifier, error) {
	var m model.HouseEdgeModifier
	err := r.q.QueryRow(ctx, `
		SELECT player, remaining_uses, reduction_bp, expiry_timestamp
		FROM house_edge_modifiers
		WHERE player = $1`+suffix, player).Scan(
		&m.Player,
		&m.RemainingUses,
		&m.ReductionBP,
		&m.ExpiryTimestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get modifier: %w", err)
	}
	return &m, nil
}

// Save stores m, replacing the player's previous modifier entirely.
func (r *ModifierRepository) Save(ctx context.Context, m *model.HouseEdgeModifier) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO house_edge_modifiers (player, remaining_uses, reduction_bp, expiry_timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player) DO UPDATE SET
			remaining_uses = EXCLUDED.remaining_uses,
			reduction_bp = EXCLUDED.reduction_bp,
			expiry_timestamp = EXCLUDED.expiry_timestamp
	`, m.Player, m.RemainingUses, m.ReductionBP, m.ExpiryTimestamp)
	if err != nil {
		return fmt.Errorf("failed to save modifier: %w", err)
	}
	return nil
}

// DeleteExpired removes modifiers that can no longer apply at now.
func (r *ModifierRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM house_edge_modifiers
		WHERE remaining_uses = 0 OR expiry_timestamp < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired modifiers: %w", err)
	}
	return tag.RowsAffected(), nil
}
