package repository

import (
	"context"
	"fmt"

	"coinflip-settlement/internal/model"
)

// AnalyticsRepository persists the day-bucketed rollups.
type AnalyticsRepository struct {
	q DBTX
}

// NewAnalyticsRepository creates a new AnalyticsRepository instance.
func NewAnalyticsRepository(q DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{q: q}
}

// ========== Daily ==========

const dailyColumns = `day, total_games, unique_players, total_volume, house_profit, total_payouts,
	reward_distributed, average_bet_size`

func scanDaily(row interface{ Scan(...any) error }) (*model.DailyAnalytics, error) {
	var d model.DailyAnalytics
	if err := row.Scan(
		&d.Day,
		&d.TotalGames,
		&d.UniquePlayers,
		&d.TotalVolume,
		&d.HouseProfit,
		&d.TotalPayouts,
		&d.RewardDistributed,
		&d.AverageBetSize,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDaily retrieves the rollup for one day bucket.
func (r *AnalyticsRepository) GetDaily(ctx context.Context, day int64) (*model.DailyAnalytics, error) {
	d, err := scanDaily(r.q.QueryRow(ctx, `SELECT `+dailyColumns+` FROM daily_analytics WHERE day = $1`, day))
	if err != nil {
		return nil, notFound(err, "daily analytics")
	}
	return d, nil
}

// DailyForUpdate returns and locks the day bucket, creating it if needed.
func (r *AnalyticsRepository) DailyForUpdate(ctx context.Context, day int64) (*model.DailyAnalytics, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO daily_analytics (day) VALUES ($1) ON CONFLICT (day) DO NOTHING`, day); err != nil {
		return nil, fmt.Errorf("failed to ensure daily analytics: %w", err)
	}
	d, err := scanDaily(r.q.QueryRow(ctx, `SELECT `+dailyColumns+` FROM daily_analytics WHERE day = $1 FOR UPDATE`, day))
	if err != nil {
		return nil, fmt.Errorf("failed to lock daily analytics: %w", err)
	}
	return d, nil
}

// SaveDaily writes every field of d.
func (r *AnalyticsRepository) SaveDaily(ctx context.Context, d *model.DailyAnalytics) error {
	_, err := r.q.Exec(ctx, `
		UPDATE daily_analytics SET
			total_games = $2, unique_players = $3, total_volume = $4, house_profit = $5,
			total_payouts = $6, reward_distributed = $7, average_bet_size = $8
		WHERE day = $1
	`, d.Day, d.TotalGames, d.UniquePlayers, d.TotalVolume, d.HouseProfit,
		d.TotalPayouts, d.RewardDistributed, d.AverageBetSize)
	if err != nil {
		return fmt.Errorf("failed to save daily analytics: %w", err)
	}
	return nil
}

// MarkDailyPlayer adds player to the day's membership set and reports
// whether this is their first game that day.
func (r *AnalyticsRepository) MarkDailyPlayer(ctx context.Context, day int64, player string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO daily_players (day, player) VALUES ($1, $2)
		ON CONFLICT (day, player) DO NOTHING
	`, day, player)
	if err != nil {
		return false, fmt.Errorf("failed to mark daily player: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ========== Game performance ==========

const performanceColumns = `game_type, day, total_games, games_won, total_volume, total_payouts,
	house_profit, house_edge_achieved_bp, player_win_rate_bp, total_duration_seconds,
	average_duration_seconds`

func scanPerformance(row interface{ Scan(...any) error }) (*model.GamePerformance, error) {
	var p model.GamePerformance
	if err := row.Scan(
		&p.GameType,
		&p.Day,
		&p.TotalGames,
		&p.GamesWon,
		&p.TotalVolume,
		&p.TotalPayouts,
		&p.HouseProfit,
		&p.HouseEdgeAchievedBP,
		&p.PlayerWinRateBP,
		&p.TotalDurationSeconds,
		&p.AverageDurationSeconds,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPerformance retrieves the rollup for one game type and day.
func (r *AnalyticsRepository) GetPerformance(ctx context.Context, gameType string, day int64) (*model.GamePerformance, error) {
	p, err := scanPerformance(r.q.QueryRow(ctx, `
		SELECT `+performanceColumns+` FROM game_performance WHERE game_type = $1 AND day = $2
	`, gameType, day))
	if err != nil {
		return nil, notFound(err, "game performance")
	}
	return p, nil
}

// ListPerformance returns every game type's rollup for one day.
func (r *AnalyticsRepository) ListPerformance(ctx context.Context, day int64) ([]*model.GamePerformance, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+performanceColumns+` FROM game_performance WHERE day = $1 ORDER BY game_type
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list game performance: %w", err)
	}
	defer rows.Close()

	var out []*model.GamePerformance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PerformanceForUpdate returns and locks a game-type day bucket.
func (r *AnalyticsRepository) PerformanceForUpdate(ctx context.Context, gameType string, day int64) (*model.GamePerformance, error) {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO game_performance (game_type, day) VALUES ($1, $2)
		ON CONFLICT (game_type, day) DO NOTHING
	`, gameType, day); err != nil {
		return nil, fmt.Errorf("failed to ensure game performance: %w", err)
	}
	p, err := scanPerformance(r.q.QueryRow(ctx, `
		SELECT `+performanceColumns+` FROM game_performance WHERE game_type = $1 AND day = $2 FOR UPDATE
	`, gameType, day))
	if err != nil {
		return nil, fmt.Errorf("failed to lock game performance: %w", err)
	}
	return p, nil
}

// SavePerformance writes every field of p.
func (r *AnalyticsRepository) SavePerformance(ctx context.Context, p *model.GamePerformance) error {
	_, err := r.q.Exec(ctx, `
		UPDATE game_performance SET
			total_games = $3, games_won = $4, total_volume = $5, total_payouts = $6,
			house_profit = $7, house_edge_achieved_bp = $8, player_win_rate_bp = $9,
			total_duration_seconds = $10, average_duration_seconds = $11
		WHERE game_type = $1 AND day = $2
	`, p.GameType, p.Day, p.TotalGames, p.GamesWon, p.TotalVolume, p.TotalPayouts,
		p.HouseProfit, p.HouseEdgeAchievedBP, p.PlayerWinRateBP,
		p.TotalDurationSeconds, p.AverageDurationSeconds)
	if err != nil {
		return fmt.Errorf("failed to save game performance: %w", err)
	}
	return nil
}

// ========== House edge usage ==========

const edgeColumns = `day, total_basis_points_purchased, total_reward_spent, total_games,
	games_with_discount, total_effective_edge_bp, average_house_edge_bp, usage_rate_bp`

func scanEdgeUsage(row interface{ Scan(...any) error }) (*model.HouseEdgeAnalytics, error) {
	var h model.HouseEdgeAnalytics
	if err := row.Scan(
		&h.Day,
		&h.TotalBasisPointsPurchased,
		&h.TotalRewardSpent,
		&h.TotalGames,
		&h.GamesWithDiscount,
		&h.TotalEffectiveEdgeBP,
		&h.AverageHouseEdgeBP,
		&h.UsageRateBP,
	); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetEdgeUsage retrieves the discount usage for one day.
func (r *AnalyticsRepository) GetEdgeUsage(ctx context.Context, day int64) (*model.HouseEdgeAnalytics, error) {
	h, err := scanEdgeUsage(r.q.QueryRow(ctx, `SELECT `+edgeColumns+` FROM house_edge_analytics WHERE day = $1`, day))
	if err != nil {
		return nil, notFound(err, "house edge analytics")
	}
	return h, nil
}

// EdgeUsageForUpdate returns and locks the day's discount usage row.
func (r *AnalyticsRepository) EdgeUsageForUpdate(ctx context.Context, day int64) (*model.HouseEdgeAnalytics, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO house_edge_analytics (day) VALUES ($1) ON CONFLICT (day) DO NOTHING`, day); err != nil {
		return nil, fmt.Errorf("failed to ensure house edge analytics: %w", err)
	}
	h, err := scanEdgeUsage(r.q.QueryRow(ctx, `SELECT `+edgeColumns+` FROM house_edge_analytics WHERE day = $1 FOR UPDATE`, day))
	if err != nil {
		return nil, fmt.Errorf("failed to lock house edge analytics: %w", err)
	}
	return h, nil
}

// SaveEdgeUsage writes every field of h.
func (r *AnalyticsRepository) SaveEdgeUsage(ctx context.Context, h *model.HouseEdgeAnalytics) error {
	_, err := r.q.Exec(ctx, `
		UPDATE house_edge_analytics SET
			total_basis_points_purchased = $2, total_reward_spent = $3, total_games = $4,
			games_with_discount = $5, total_effective_edge_bp = $6, average_house_edge_bp = $7,
			usage_rate_bp = $8
		WHERE day = $1
	`, h.Day, h.TotalBasisPointsPurchased, h.TotalRewardSpent, h.TotalGames,
		h.GamesWithDiscount, h.TotalEffectiveEdgeBP, h.AverageHouseEdgeBP, h.UsageRateBP)
	if err != nil {
		return fmt.Errorf("failed to save house edge analytics: %w", err)
	}
	return nil
}

// ========== Randomness ==========

const randomnessColumns = `day, total_requests, successful_fulfillments, failed_fulfillments,
	total_fulfillment_seconds, average_fulfillment_seconds`

func scanRandomness(row interface{ Scan(...any) error }) (*model.RandomnessAnalytics, error) {
	var a model.RandomnessAnalytics
	if err := row.Scan(
		&a.Day,
		&a.TotalRequests,
		&a.SuccessfulFulfillments,
		&a.FailedFulfillments,
		&a.TotalFulfillmentSeconds,
		&a.AverageFulfillmentSeconds,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetRandomness retrieves the randomness source stats for one day.
func (r *AnalyticsRepository) GetRandomness(ctx context.Context, day int64) (*model.RandomnessAnalytics, error) {
	a, err := scanRandomness(r.q.QueryRow(ctx, `SELECT `+randomnessColumns+` FROM randomness_analytics WHERE day = $1`, day))
	if err != nil {
		return nil, notFound(err, "randomness analytics")
	}
	return a, nil
}

// RandomnessForUpdate returns and locks the day's randomness row.
func (r *AnalyticsRepository) RandomnessForUpdate(ctx context.Context, day int64) (*model.RandomnessAnalytics, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO randomness_analytics (day) VALUES ($1) ON CONFLICT (day) DO NOTHING`, day); err != nil {
		return nil, fmt.Errorf("failed to ensure randomness analytics: %w", err)
	}
	a, err := scanRandomness(r.q.QueryRow(ctx, `SELECT `+randomnessColumns+` FROM randomness_analytics WHERE day = $1 FOR UPDATE`, day))
	if err != nil {
		return nil, fmt.Errorf("failed to lock randomness analytics: %w", err)
	}
	return a, nil
}

// SaveRandomness writes every field of a.
func (r *AnalyticsRepository) SaveRandomness(ctx context.Context, a *model.RandomnessAnalytics) error {
	_, err := r.q.Exec(ctx, `
		UPDATE randomness_analytics SET
			total_requests = $2, successful_fulfillments = $3, failed_fulfillments = $4,
			total_fulfillment_seconds = $5, average_fulfillment_seconds = $6
		WHERE day = $1
	`, a.Day, a.TotalRequests, a.SuccessfulFulfillments, a.FailedFulfillments,
		a.TotalFulfillmentSeconds, a.AverageFulfillmentSeconds)
	if err != nil {
		return fmt.Errorf("failed to save randomness analytics: %w", err)
	}
	return nil
}
