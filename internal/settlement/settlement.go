// Package settlement composes the pure ledgers into the per-game pipeline:
// place a bet, settle it against a delivered random value, or expire it.
//
// The engine works on value records handed in by the caller and performs no
// I/O. Every call validates all of its inputs before the first write, so a
// returned error means nothing was mutated.
package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/balance"
	"coinflip-settlement/internal/game"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/modifier"
	"coinflip-settlement/internal/pkg/bps"
	"coinflip-settlement/internal/stats"
)

// Errors returned by the pipeline.
var (
	ErrInvalidBetAmount          = errors.New("bet amount outside the allowed range")
	ErrGamePaused                = errors.New("game is paused")
	ErrUnknownGame               = errors.New("unknown game type")
	ErrGameNotPending            = errors.New("game is not pending")
	ErrGameNotExpired            = errors.New("game has not expired yet")
	ErrInsufficientRewardBalance = errors.New("insufficient reward balance")
	ErrPurchaseTooSmall          = errors.New("discount cost is below the minimum purchase")
	ErrInvalidSettings           = errors.New("invalid settlement settings")
)

// Settings are the plain configuration values the pipeline enforces.
type Settings struct {
	DefaultHouseEdgeBP int64
	MinBet             decimal.Decimal
	MaxBet             decimal.Decimal
	RewardRateBP       int64
	GameExpiryBlocks   uint64
	Paused             bool
	Discount           modifier.Limits
	BasisPointCost     decimal.Decimal
	MinRewardPurchase  decimal.Decimal
}

// Validate checks the settings for values that would break settlement.
func (s Settings) Validate() error {
	if s.DefaultHouseEdgeBP < 0 || s.DefaultHouseEdgeBP >= bps.Scale {
		return fmt.Errorf("%w: default house edge %d", ErrInvalidSettings, s.DefaultHouseEdgeBP)
	}
	if s.MinBet.IsNegative() || s.MaxBet.LessThan(s.MinBet) {
		return fmt.Errorf("%w: bet range [%s, %s]", ErrInvalidSettings, s.MinBet, s.MaxBet)
	}
	if s.RewardRateBP < 0 {
		return fmt.Errorf("%w: reward rate %d", ErrInvalidSettings, s.RewardRateBP)
	}
	if s.Discount.MaxReductionBP < 0 || s.Discount.MaxReductionBP > s.DefaultHouseEdgeBP {
		return fmt.Errorf("%w: max reduction %d", ErrInvalidSettings, s.Discount.MaxReductionBP)
	}
	if s.BasisPointCost.IsNegative() || s.MinRewardPurchase.IsNegative() {
		return fmt.Errorf("%w: negative discount pricing", ErrInvalidSettings)
	}
	return nil
}

// IsValidBetAmount reports whether amount lies within [MinBet, MaxBet].
func (s Settings) IsValidBetAmount(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(s.MinBet) && amount.LessThanOrEqual(s.MaxBet)
}

// Reward returns the reward currency earned by a winning bet.
func (s Settings) Reward(bet decimal.Decimal) decimal.Decimal {
	return bps.Apply(bet, s.RewardRateBP)
}

// Engine runs the settlement pipeline for the registered games.
type Engine struct {
	games    *game.Registry
	settings Settings
}

// NewEngine creates an engine. The settings are validated once here.
func NewEngine(games *game.Registry, settings Settings) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Engine{games: games, settings: settings}, nil
}

// Settings returns the engine's configuration.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Bet describes a wager being placed.
type Bet struct {
	ID              string
	RandomOutcomeID string
	Player          string
	GameType        string
	Amount          decimal.Decimal
	ChosenSide      model.Side
	Timestamp       int64
	Block           uint64
}

// Place validates a bet, locks its stake and records the randomness request.
func (e *Engine) Place(b Bet, bal *model.PlayerBalance, rnd *model.RandomnessAnalytics) (model.PendingGame, error) {
	if e.settings.Paused {
		return model.PendingGame{}, ErrGamePaused
	}
	if _, ok := e.games.Get(b.GameType); !ok {
		return model.PendingGame{}, fmt.Errorf("%w: %q", ErrUnknownGame, b.GameType)
	}
	if !b.ChosenSide.Valid() {
		return model.PendingGame{}, model.ErrInvalidSide
	}
	if !e.settings.IsValidBetAmount(b.Amount) {
		return model.PendingGame{}, fmt.Errorf("%w: %s not in [%s, %s]",
			ErrInvalidBetAmount, b.Amount, e.settings.MinBet, e.settings.MaxBet)
	}
	if err := balance.Lock(bal, b.Amount); err != nil {
		return model.PendingGame{}, err
	}
	analytics.RecordRandomnessRequest(rnd)

	return model.PendingGame{
		ID:              b.ID,
		RandomOutcomeID: b.RandomOutcomeID,
		Player:          b.Player,
		GameType:        b.GameType,
		BetAmount:       b.Amount,
		ChosenSide:      b.ChosenSide,
		PlacedAt:        b.Timestamp,
		PlacedBlock:     b.Block,
		Status:          model.GameStatusPending,
	}, nil
}

// Fulfillment is a random value delivered for a pending game.
type Fulfillment struct {
	RandomValue string
	Timestamp   int64
	BlockNumber uint64
}

// Ledgers holds every keyed record one settlement folds into. Modifier may
// be nil when the player holds none. NewDailyPlayer is true when this is the
// player's first game in the day bucket.
type Ledgers struct {
	Balance        *model.PlayerBalance
	Stats          *model.PlayerStats
	Modifier       *model.HouseEdgeModifier
	Daily          *model.DailyAnalytics
	Performance    *model.GamePerformance
	EdgeUsage      *model.HouseEdgeAnalytics
	Randomness     *model.RandomnessAnalytics
	Leaderboard    *model.LeaderboardEntry
	NewDailyPlayer bool
}

// Settle resolves a pending game and folds the result into every ledger.
func (e *Engine) Settle(p model.PendingGame, f Fulfillment, l Ledgers) (model.SettledGame, error) {
	if p.Status != model.GameStatusPending {
		return model.SettledGame{}, fmt.Errorf("%w: %s is %s", ErrGameNotPending, p.ID, p.Status)
	}
	g, ok := e.games.Get(p.GameType)
	if !ok {
		return model.SettledGame{}, fmt.Errorf("%w: %q", ErrUnknownGame, p.GameType)
	}
	actual, err := g.ResolveSide(f.RandomValue)
	if err != nil {
		return model.SettledGame{}, err
	}

	reduction := modifier.Peek(l.Modifier, f.Timestamp)
	edge := modifier.EffectiveHouseEdge(e.settings.DefaultHouseEdgeBP, reduction)
	outcome, err := g.Settle(p.BetAmount, p.ChosenSide, actual, edge)
	if err != nil {
		return model.SettledGame{}, err
	}

	reward := decimal.Zero
	if outcome.PlayerWon {
		reward = e.settings.Reward(p.BetAmount)
	}
	if reward.IsNegative() {
		return model.SettledGame{}, fmt.Errorf("reward %s: %w", reward, balance.ErrNegativeAmount)
	}

	// First write. It checks the lock before touching anything, and the
	// reward credit below cannot fail once the reward is known non-negative.
	if err := balance.Settle(l.Balance, p.BetAmount, outcome.Payout); err != nil {
		return model.SettledGame{}, err
	}
	if err := balance.CreditReward(l.Balance, reward); err != nil {
		return model.SettledGame{}, err
	}
	discounted := modifier.Consume(l.Modifier, f.Timestamp) > 0

	settled := model.SettledGame{
		ID:              p.ID,
		Player:          p.Player,
		GameType:        p.GameType,
		ChosenSide:      p.ChosenSide,
		ActualSide:      actual,
		BetAmount:       p.BetAmount,
		HouseEdgeBP:     edge,
		PayoutAmount:    outcome.Payout,
		PlayerWon:       outcome.PlayerWon,
		DiscountApplied: discounted,
		RewardEarned:    reward,
		PlacedAt:        p.PlacedAt,
		Timestamp:       f.Timestamp,
		BlockNumber:     f.BlockNumber,
		RandomOutcomeID: p.RandomOutcomeID,
	}

	stats.Record(l.Stats, settled, reward)
	analytics.RecordDaily(l.Daily, settled, reward, l.NewDailyPlayer)
	analytics.RecordGamePerformance(l.Performance, settled, f.Timestamp-p.PlacedAt)
	analytics.RecordHouseEdgeUsage(l.EdgeUsage, settled)
	analytics.RecordFulfillment(l.Randomness, f.Timestamp-p.PlacedAt)
	analytics.UpdateLeaderboard(l.Leaderboard, p.BetAmount, outcome.NetResult, f.Timestamp)

	return settled, nil
}

// IsExpired reports whether a pending game has waited longer than the
// configured number of blocks. An expiry of 0 blocks disables expiry.
func (e *Engine) IsExpired(p model.PendingGame, currentBlock uint64) bool {
	if e.settings.GameExpiryBlocks == 0 {
		return false
	}
	return currentBlock >= p.PlacedBlock+e.settings.GameExpiryBlocks
}

// Expire refunds a pending game whose randomness never arrived.
func (e *Engine) Expire(p model.PendingGame, currentBlock uint64, bal *model.PlayerBalance, rnd *model.RandomnessAnalytics) error {
	if p.Status != model.GameStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrGameNotPending, p.ID, p.Status)
	}
	if !e.IsExpired(p, currentBlock) {
		return fmt.Errorf("%w: placed at block %d, now %d", ErrGameNotExpired, p.PlacedBlock, currentBlock)
	}
	if err := balance.Unlock(bal, p.BetAmount); err != nil {
		return err
	}
	analytics.RecordFailedFulfillment(rnd)
	return nil
}
