package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"coinflip-settlement/internal/model"
)

// GameRepository persists pending bets and settled game records.
type GameRepository struct {
	q DBTX
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(q DBTX) *GameRepository {
	return &GameRepository{q: q}
}

const pendingColumns = `id, random_outcome_id, player, game_type, bet_amount, chosen_side,
	placed_at, placed_block, status`

func scanPending(row interface{ Scan(...any) error }) (*model.PendingGame, error) {
	var (
		p     model.PendingGame
		side  int16
		block int64
	)
	err := row.Scan(
		&p.ID,
		&p.RandomOutcomeID,
		&p.Player,
		&p.GameType,
		&p.BetAmount,
		&side,
		&p.PlacedAt,
		&block,
		&p.Status,
	)
	if err != nil {
		return nil, err
	}
	p.ChosenSide = model.Side(side)
	p.PlacedBlock = uint64(block)
	return &p, nil
}

// CreatePending records a newly placed bet.
func (r *GameRepository) CreatePending(ctx context.Context, p *model.PendingGame) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO pending_games (`+pendingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.RandomOutcomeID, p.Player, p.GameType, p.BetAmount, int16(p.ChosenSide),
		p.PlacedAt, int64(p.PlacedBlock), p.Status)
	if isUniqueViolation(err) {
		return fmt.Errorf("pending game for outcome %s: %w", p.RandomOutcomeID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create pending game: %w", err)
	}
	return nil
}

// GetPending retrieves a pending game by id.
func (r *GameRepository) GetPending(ctx context.Context, id string) (*model.PendingGame, error) {
	p, err := scanPending(r.q.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_games WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "pending game")
	}
	return p, nil
}

// GetPendingByOutcome retrieves the game waiting on a randomness request.
func (r *GameRepository) GetPendingByOutcome(ctx context.Context, randomOutcomeID string) (*model.PendingGame, error) {
	p, err := scanPending(r.q.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_games WHERE random_outcome_id = $1`, randomOutcomeID))
	if err != nil {
		return nil, notFound(err, "pending game")
	}
	return p, nil
}

// GetPendingByOutcomeForUpdate locks the game waiting on a randomness request.
func (r *GameRepository) GetPendingByOutcomeForUpdate(ctx context.Context, randomOutcomeID string) (*model.PendingGame, error) {
	p, err := scanPending(r.q.QueryRow(ctx, `
		SELECT `+pendingColumns+` FROM pending_games
		WHERE random_outcome_id = $1
		FOR UPDATE
	`, randomOutcomeID))
	if err != nil {
		return nil, notFound(err, "pending game")
	}
	return p, nil
}

// GetPendingForUpdate locks a pending game by id.
func (r *GameRepository) GetPendingForUpdate(ctx context.Context, id string) (*model.PendingGame, error) {
	p, err := scanPending(r.q.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_games WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "pending game")
	}
	return p, nil
}

// ListStale returns pending games placed at or before maxBlock, oldest first.
func (r *GameRepository) ListStale(ctx context.Context, maxBlock uint64, limit int) ([]*model.PendingGame, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+pendingColumns+` FROM pending_games
		WHERE status = $1 AND placed_block <= $2
		ORDER BY placed_block
		LIMIT $3
	`, model.GameStatusPending, int64(maxBlock), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale games: %w", err)
	}
	defer rows.Close()

	var games []*model.PendingGame
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending game: %w", err)
		}
		games = append(games, p)
	}
	return games, rows.Err()
}

// SetStatus moves a pending game to its final status.
func (r *GameRepository) SetStatus(ctx context.Context, id string, status model.GameStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE pending_games SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set game status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending game %s: %w", id, ErrNotFound)
	}
	return nil
}

const settledColumns = `id, player, game_type, chosen_side, actual_side, bet_amount, house_edge_bp,
	payout_amount, player_won, discount_applied, reward_earned, placed_at, timestamp,
	block_number, random_outcome_id`

func scanSettled(row interface{ Scan(...any) error }) (*model.SettledGame, error) {
	var (
		g              model.SettledGame
		chosen, actual int16
		block          int64
	)
	err := row.Scan(
		&g.ID,
		&g.Player,
		&g.GameType,
		&chosen,
		&actual,
		&g.BetAmount,
		&g.HouseEdgeBP,
		&g.PayoutAmount,
		&g.PlayerWon,
		&g.DiscountApplied,
		&g.RewardEarned,
		&g.PlacedAt,
		&g.Timestamp,
		&block,
		&g.RandomOutcomeID,
	)
	if err != nil {
		return nil, err
	}
	g.ChosenSide = model.Side(chosen)
	g.ActualSide = model.Side(actual)
	g.BlockNumber = uint64(block)
	return &g, nil
}

// InsertSettled stores the immutable record of a settled game.
func (r *GameRepository) InsertSettled(ctx context.Context, g *model.SettledGame) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO settled_games (`+settledColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, g.ID, g.Player, g.GameType, int16(g.ChosenSide), int16(g.ActualSide), g.BetAmount, g.HouseEdgeBP,
		g.PayoutAmount, g.PlayerWon, g.DiscountApplied, g.RewardEarned, g.PlacedAt, g.Timestamp,
		int64(g.BlockNumber), g.RandomOutcomeID)
	if err != nil {
		return fmt.Errorf("failed to insert settled game: %w", err)
	}
	return nil
}

// GetSettled retrieves a settled game by id.
func (r *GameRepository) GetSettled(ctx context.Context, id string) (*model.SettledGame, error) {
	g, err := scanSettled(r.q.QueryRow(ctx, `SELECT `+settledColumns+` FROM settled_games WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "settled game")
	}
	return g, nil
}

// ListSettledByPlayer returns a player's most recent settled games.
func (r *GameRepository) ListSettledByPlayer(ctx context.Context, player string, limit int) ([]*model.SettledGame, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+settledColumns+` FROM settled_games
		WHERE player = $1
		ORDER BY timestamp DESC, id
		LIMIT $2
	`, player, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled games: %w", err)
	}
	return collectSettled(rows)
}

func collectSettled(rows pgx.Rows) ([]*model.SettledGame, error) {
	defer rows.Close()

	var games []*model.SettledGame
	for rows.Next() {
		g, err := scanSettled(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settled game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
