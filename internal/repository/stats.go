package repository

import (
	"context"
	"fmt"

	"coinflip-settlement/internal/model"
)

// StatsRepository persists per-player lifetime stats.
type StatsRepository struct {
	q DBTX
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(q DBTX) *StatsRepository {
	return &StatsRepository{q: q}
}

const statsColumns = `player, total_games, games_won, games_lost, total_bet, total_winnings,
	total_losses, reward_earned, current_streak, best_streak`

func scanStats(row interface{ Scan(...any) error }) (*model.PlayerStats, error) {
	var s model.PlayerStats
	err := row.Scan(
		&s.Player,
		&s.TotalGames,
		&s.GamesWon,
		&s.GamesLost,
		&s.TotalBet,
		&s.TotalWinnings,
		&s.TotalLosses,
		&s.RewardEarned,
		&s.CurrentStreak,
		&s.BestStreak,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get retrieves a player's stats.
func (r *StatsRepository) Get(ctx context.Context, player string) (*model.PlayerStats, error) {
	s, err := scanStats(r.q.QueryRow(ctx, `SELECT `+statsColumns+` FROM player_stats WHERE player = $1`, player))
	if err != nil {
		return nil, notFound(err, "stats")
	}
	return s, nil
}

// GetForUpdate returns the player's stats, creating a zeroed row if needed,
// and locks it.
func (r *StatsRepository) GetForUpdate(ctx context.Context, player string) (*model.PlayerStats, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO player_stats (player) VALUES ($1) ON CONFLICT (player) DO NOTHING`, player); err != nil {
		return nil, fmt.Errorf("failed to ensure stats: %w", err)
	}
	s, err := scanStats(r.q.QueryRow(ctx, `SELECT `+statsColumns+` FROM player_stats WHERE player = $1 FOR UPDATE`, player))
	if err != nil {
		return nil, fmt.Errorf("failed to lock stats: %w", err)
	}
	return s, nil
}

// Save writes every field of s.
func (r *StatsRepository) Save(ctx context.Context, s *model.PlayerStats) error {
	_, err := r.q.Exec(ctx, `
		UPDATE player_stats SET
			total_games = $2, games_won = $3, games_lost = $4,
			total_bet = $5, total_winnings = $6, total_losses = $7,
			reward_earned = $8, current_streak = $9, best_streak = $10
		WHERE player = $1
	`, s.Player, s.TotalGames, s.GamesWon, s.GamesLost,
		s.TotalBet, s.TotalWinnings, s.TotalLosses,
		s.RewardEarned, s.CurrentStreak, s.BestStreak)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}
