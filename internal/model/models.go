// Package model defines the value records for coin flip settlement and bookkeeping.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameStatus tracks a placed bet through its two-phase lifecycle.
type GameStatus string

const (
	GameStatusPending GameStatus = "pending" // Funds locked, waiting for randomness
	GameStatusSettled GameStatus = "settled" // Outcome applied to every ledger
	GameStatusExpired GameStatus = "expired" // Randomness never arrived, funds refunded
)

// PendingGame is a bet whose funds are locked but whose outcome is not yet known.
// RandomOutcomeID is the request identifier handed to the randomness source.
type PendingGame struct {
	ID              string          `db:"id" json:"id"`
	RandomOutcomeID string          `db:"random_outcome_id" json:"random_outcome_id"`
	Player          string          `db:"player" json:"player"`
	GameType        string          `db:"game_type" json:"game_type"`
	BetAmount       decimal.Decimal `db:"bet_amount" json:"bet_amount"`
	ChosenSide      Side            `db:"chosen_side" json:"chosen_side"`
	PlacedAt        int64           `db:"placed_at" json:"placed_at"`
	PlacedBlock     uint64          `db:"placed_block" json:"placed_block"`
	Status          GameStatus      `db:"status" json:"status"`
}

// SettledGame is the permanent, immutable record of one play.
type SettledGame struct {
	ID              string          `db:"id" json:"id"`
	Player          string          `db:"player" json:"player"`
	GameType        string          `db:"game_type" json:"game_type"`
	ChosenSide      Side            `db:"chosen_side" json:"chosen_side"`
	ActualSide      Side            `db:"actual_side" json:"actual_side"`
	BetAmount       decimal.Decimal `db:"bet_amount" json:"bet_amount"`
	HouseEdgeBP     int64           `db:"house_edge_bp" json:"house_edge_bp"`
	PayoutAmount    decimal.Decimal `db:"payout_amount" json:"payout_amount"`
	PlayerWon       bool            `db:"player_won" json:"player_won"`
	DiscountApplied bool            `db:"discount_applied" json:"discount_applied"`
	RewardEarned    decimal.Decimal `db:"reward_earned" json:"reward_earned"`
	PlacedAt        int64           `db:"placed_at" json:"placed_at"`
	Timestamp       int64           `db:"timestamp" json:"timestamp"`
	BlockNumber     uint64          `db:"block_number" json:"block_number"`
	RandomOutcomeID string          `db:"random_outcome_id" json:"random_outcome_id"`
}

// NetResult returns the player's signed profit for this game.
func (g SettledGame) NetResult() decimal.Decimal {
	if !g.PlayerWon {
		return g.BetAmount.Neg()
	}
	return g.PayoutAmount.Sub(g.BetAmount)
}

// HouseEdgeModifier is a time-boxed, count-limited reduction of a player's house edge.
// A player holds at most one; granting a new one replaces the old record.
type HouseEdgeModifier struct {
	Player          string `db:"player" json:"player"`
	RemainingUses   int64  `db:"remaining_uses" json:"remaining_uses"`
	ReductionBP     int64  `db:"reduction_bp" json:"reduction_bp"`
	ExpiryTimestamp int64  `db:"expiry_timestamp" json:"expiry_timestamp"`
}

// PlayerBalance holds a player's funds in the wager and reward currencies.
type PlayerBalance struct {
	Player          string          `db:"player" json:"player"`
	SpendableWager  decimal.Decimal `db:"spendable_wager" json:"spendable_wager"`
	SpendableReward decimal.Decimal `db:"spendable_reward" json:"spendable_reward"`
	LockedWager     decimal.Decimal `db:"locked_wager" json:"locked_wager"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// PlayerStats holds lifetime counters for one player.
type PlayerStats struct {
	Player        string          `db:"player" json:"player"`
	TotalGames    int64           `db:"total_games" json:"total_games"`
	GamesWon      int64           `db:"games_won" json:"games_won"`
	GamesLost     int64           `db:"games_lost" json:"games_lost"`
	TotalBet      decimal.Decimal `db:"total_bet" json:"total_bet"`
	TotalWinnings decimal.Decimal `db:"total_winnings" json:"total_winnings"`
	TotalLosses   decimal.Decimal `db:"total_losses" json:"total_losses"`
	RewardEarned  decimal.Decimal `db:"reward_earned" json:"reward_earned"`
	CurrentStreak int64           `db:"current_streak" json:"current_streak"`
	BestStreak    int64           `db:"best_streak" json:"best_streak"`
}

// DailyAnalytics is the platform-wide rollup for one day bucket.
// HouseProfit is signed: players can out-win the house on a given day.
type DailyAnalytics struct {
	Day               int64           `db:"day" json:"day"`
	TotalGames        int64           `db:"total_games" json:"total_games"`
	UniquePlayers     int64           `db:"unique_players" json:"unique_players"`
	TotalVolume       decimal.Decimal `db:"total_volume" json:"total_volume"`
	HouseProfit       decimal.Decimal `db:"house_profit" json:"house_profit"`
	TotalPayouts      decimal.Decimal `db:"total_payouts" json:"total_payouts"`
	RewardDistributed decimal.Decimal `db:"reward_distributed" json:"reward_distributed"`
	AverageBetSize    decimal.Decimal `db:"average_bet_size" json:"average_bet_size"`
}

// GamePerformance is the rollup for one game type within one day bucket.
type GamePerformance struct {
	GameType               string          `db:"game_type" json:"game_type"`
	Day                    int64           `db:"day" json:"day"`
	TotalGames             int64           `db:"total_games" json:"total_games"`
	GamesWon               int64           `db:"games_won" json:"games_won"`
	TotalVolume            decimal.Decimal `db:"total_volume" json:"total_volume"`
	TotalPayouts           decimal.Decimal `db:"total_payouts" json:"total_payouts"`
	HouseProfit            decimal.Decimal `db:"house_profit" json:"house_profit"`
	HouseEdgeAchievedBP    int64           `db:"house_edge_achieved_bp" json:"house_edge_achieved_bp"`
	PlayerWinRateBP        int64           `db:"player_win_rate_bp" json:"player_win_rate_bp"`
	TotalDurationSeconds   int64           `db:"total_duration_seconds" json:"total_duration_seconds"`
	AverageDurationSeconds int64           `db:"average_duration_seconds" json:"average_duration_seconds"`
}

// HouseEdgeAnalytics tracks discount purchases and usage for one day bucket.
type HouseEdgeAnalytics struct {
	Day                       int64           `db:"day" json:"day"`
	TotalBasisPointsPurchased int64           `db:"total_basis_points_purchased" json:"total_basis_points_purchased"`
	TotalRewardSpent          decimal.Decimal `db:"total_reward_spent" json:"total_reward_spent"`
	TotalGames                int64           `db:"total_games" json:"total_games"`
	GamesWithDiscount         int64           `db:"games_with_discount" json:"games_with_discount"`
	TotalEffectiveEdgeBP      int64           `db:"total_effective_edge_bp" json:"total_effective_edge_bp"`
	AverageHouseEdgeBP        int64           `db:"average_house_edge_bp" json:"average_house_edge_bp"`
	UsageRateBP               int64           `db:"usage_rate_bp" json:"usage_rate_bp"`
}

// RandomnessAnalytics tracks how reliably the randomness source answers requests.
type RandomnessAnalytics struct {
	Day                       int64 `db:"day" json:"day"`
	TotalRequests             int64 `db:"total_requests" json:"total_requests"`
	SuccessfulFulfillments    int64 `db:"successful_fulfillments" json:"successful_fulfillments"`
	FailedFulfillments        int64 `db:"failed_fulfillments" json:"failed_fulfillments"`
	TotalFulfillmentSeconds   int64 `db:"total_fulfillment_seconds" json:"total_fulfillment_seconds"`
	AverageFulfillmentSeconds int64 `db:"average_fulfillment_seconds" json:"average_fulfillment_seconds"`
}

// LeaderboardEntry holds a player's competitive totals.
// The ranks are filled in by the query path and are never persisted by settlement.
type LeaderboardEntry struct {
	Player       string          `db:"player" json:"player"`
	TotalVolume  decimal.Decimal `db:"total_volume" json:"total_volume"`
	NetProfit    decimal.Decimal `db:"net_profit" json:"net_profit"`
	RankByVolume int64           `db:"-" json:"rank_by_volume"`
	RankByProfit int64           `db:"-" json:"rank_by_profit"`
	LastUpdated  int64           `db:"last_updated" json:"last_updated"`
}

// LedgerEntryType classifies a movement of player funds.
type LedgerEntryType string

const (
	LedgerDeposit          LedgerEntryType = "deposit"
	LedgerBetLocked        LedgerEntryType = "bet_locked"
	LedgerBetWon           LedgerEntryType = "bet_won"
	LedgerBetLost          LedgerEntryType = "bet_lost"
	LedgerBetRefunded      LedgerEntryType = "bet_refunded"
	LedgerRewardCredited   LedgerEntryType = "reward_credited"
	LedgerDiscountPurchase LedgerEntryType = "discount_purchase"
)

// LedgerEntry is an append-only audit record of one balance movement.
// Amount is signed from the player's point of view.
type LedgerEntry struct {
	ID        int64           `db:"id" json:"id"`
	Player    string          `db:"player" json:"player"`
	Type      LedgerEntryType `db:"entry_type" json:"type"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	GameID    *string         `db:"game_id" json:"game_id,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
