package repository

import (
	"context"
	"fmt"

	"coinflip-settlement/internal/model"
)

// LeaderboardRepository persists per-player competitive totals. Ranks are
// never stored; they are computed on read.
type LeaderboardRepository struct {
	q DBTX
}

// NewLeaderboardRepository creates a new LeaderboardRepository instance.
func NewLeaderboardRepository(q DBTX) *LeaderboardRepository {
	return &LeaderboardRepository{q: q}
}

func scanEntry(row interface{ Scan(...any) error }) (*model.LeaderboardEntry, error) {
	var e model.LeaderboardEntry
	if err := row.Scan(&e.Player, &e.TotalVolume, &e.NetProfit, &e.LastUpdated); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get retrieves a player's leaderboard totals.
func (r *LeaderboardRepository) Get(ctx context.Context, player string) (*model.LeaderboardEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx, `
		SELECT player, total_volume, net_profit, last_updated FROM leaderboard WHERE player = $1
	`, player))
	if err != nil {
		return nil, notFound(err, "leaderboard entry")
	}
	return e, nil
}

// GetForUpdate returns and locks a player's entry, creating it if needed.
func (r *LeaderboardRepository) GetForUpdate(ctx context.Context, player string) (*model.LeaderboardEntry, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO leaderboard (player) VALUES ($1) ON CONFLICT (player) DO NOTHING`, player); err != nil {
		return nil, fmt.Errorf("failed to ensure leaderboard entry: %w", err)
	}
	e, err := scanEntry(r.q.QueryRow(ctx, `
		SELECT player, total_volume, net_profit, last_updated FROM leaderboard WHERE player = $1 FOR UPDATE
	`, player))
	if err != nil {
		return nil, fmt.Errorf("failed to lock leaderboard entry: %w", err)
	}
	return e, nil
}

// Save writes the totals of e.
func (r *LeaderboardRepository) Save(ctx context.Context, e *model.LeaderboardEntry) error {
	_, err := r.q.Exec(ctx, `
		UPDATE leaderboard SET total_volume = $2, net_profit = $3, last_updated = $4
		WHERE player = $1
	`, e.Player, e.TotalVolume, e.NetProfit, e.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save leaderboard entry: %w", err)
	}
	return nil
}

// Snapshot loads every entry for ranking.
func (r *LeaderboardRepository) Snapshot(ctx context.Context) ([]model.LeaderboardEntry, error) {
	rows, err := r.q.Query(ctx, `SELECT player, total_volume, net_profit, last_updated FROM leaderboard`)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}
