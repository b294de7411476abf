// Package analytics folds settled games into day-bucketed platform rollups and
// computes the leaderboard ranking over per-player totals.
//
// Every fold here is commutative in the games it is given: folding the same
// games in any order yields the same bucket. Derived fields (averages, rates,
// profit) are recomputed from running totals on each update.
package analytics

import (
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/pkg/bps"
)

// SecondsPerDay is the width of a day bucket.
const SecondsPerDay int64 = 86400

// DayBucket floors a unix timestamp to the start of its UTC day.
func DayBucket(ts int64) int64 {
	d := ts / SecondsPerDay
	if ts < 0 && ts%SecondsPerDay != 0 {
		d--
	}
	return d * SecondsPerDay
}

// WinRateBP returns floor(wins * 10000 / total), or 0 when total is 0.
func WinRateBP(wins, total int64) int64 {
	return bps.Ratio(wins, total)
}

// RecordDaily folds g into the day bucket. newPlayer is true when this is the
// player's first game in the bucket; the caller owns that membership set.
func RecordDaily(d *model.DailyAnalytics, g model.SettledGame, rewardDelta decimal.Decimal, newPlayer bool) {
	d.TotalGames++
	if newPlayer {
		d.UniquePlayers++
	}
	d.TotalVolume = d.TotalVolume.Add(g.BetAmount)
	d.TotalPayouts = d.TotalPayouts.Add(g.PayoutAmount)
	d.RewardDistributed = d.RewardDistributed.Add(rewardDelta)
	d.HouseProfit = d.TotalVolume.Sub(d.TotalPayouts)
	d.AverageBetSize = bps.Quo(d.TotalVolume, d.TotalGames)
}

// HouseEdgePercentageBP returns house profit as a share of volume, in basis
// points. Negative when players out-won the house.
func HouseEdgePercentageBP(d model.DailyAnalytics) int64 {
	return bps.RatioAmount(d.HouseProfit, d.TotalVolume)
}

// ProfitMarginBP returns (volume - payouts) / volume in basis points.
func ProfitMarginBP(d model.DailyAnalytics) int64 {
	return bps.RatioAmount(d.TotalVolume.Sub(d.TotalPayouts), d.TotalVolume)
}

// RecordGamePerformance folds g into its game-type day bucket.
// durationSeconds is the time between placing and settling the bet.
func RecordGamePerformance(p *model.GamePerformance, g model.SettledGame, durationSeconds int64) {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	p.TotalGames++
	if g.PlayerWon {
		p.GamesWon++
	}
	p.TotalVolume = p.TotalVolume.Add(g.BetAmount)
	p.TotalPayouts = p.TotalPayouts.Add(g.PayoutAmount)
	p.HouseProfit = p.TotalVolume.Sub(p.TotalPayouts)
	p.HouseEdgeAchievedBP = bps.RatioAmount(p.HouseProfit, p.TotalVolume)
	p.PlayerWinRateBP = WinRateBP(p.GamesWon, p.TotalGames)
	p.TotalDurationSeconds += durationSeconds
	p.AverageDurationSeconds = p.TotalDurationSeconds / p.TotalGames
}

// RecordHouseEdgeUsage folds the edge a game was settled at into the day's
// discount usage.
func RecordHouseEdgeUsage(h *model.HouseEdgeAnalytics, g model.SettledGame) {
	h.TotalGames++
	if g.DiscountApplied {
		h.GamesWithDiscount++
	}
	h.TotalEffectiveEdgeBP += g.HouseEdgeBP
	h.AverageHouseEdgeBP = h.TotalEffectiveEdgeBP / h.TotalGames
	h.UsageRateBP = bps.Ratio(h.GamesWithDiscount, h.TotalGames)
}

// RecordDiscountPurchase adds a discount purchase to the day's totals.
func RecordDiscountPurchase(h *model.HouseEdgeAnalytics, basisPoints int64, rewardSpent decimal.Decimal) {
	h.TotalBasisPointsPurchased += basisPoints
	h.TotalRewardSpent = h.TotalRewardSpent.Add(rewardSpent)
}

// RecordRandomnessRequest counts a randomness request made for a placed bet.
func RecordRandomnessRequest(r *model.RandomnessAnalytics) {
	r.TotalRequests++
}

// RecordFulfillment counts a delivered random value and how long it took.
func RecordFulfillment(r *model.RandomnessAnalytics, seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	r.SuccessfulFulfillments++
	r.TotalFulfillmentSeconds += seconds
	r.AverageFulfillmentSeconds = r.TotalFulfillmentSeconds / r.SuccessfulFulfillments
}

// RecordFailedFulfillment counts a request that expired without a value.
func RecordFailedFulfillment(r *model.RandomnessAnalytics) {
	r.FailedFulfillments++
}
