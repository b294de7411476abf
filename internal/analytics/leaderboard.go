package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
)

// UpdateLeaderboard adds a game's deltas to a player's totals.
// Ranks are left alone; they belong to the read side (see Rank).
func UpdateLeaderboard(e *model.LeaderboardEntry, volumeDelta, profitDelta decimal.Decimal, ts int64) {
	e.TotalVolume = e.TotalVolume.Add(volumeDelta)
	e.NetProfit = e.NetProfit.Add(profitDelta)
	e.LastUpdated = ts
}

// Rank returns a copy of entries with RankByVolume and RankByProfit filled
// in, ordered by volume. Higher is better for both; ties go to the
// lexicographically smaller player so ranks are stable between snapshots.
func Rank(entries []model.LeaderboardEntry) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i].NetProfit, out[j].NetProfit, out[i].Player, out[j].Player)
	})
	for i := range out {
		out[i].RankByProfit = int64(i + 1)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i].TotalVolume, out[j].TotalVolume, out[i].Player, out[j].Player)
	})
	for i := range out {
		out[i].RankByVolume = int64(i + 1)
	}
	return out
}

// SortByProfit orders ranked entries by RankByProfit.
func SortByProfit(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RankByProfit < entries[j].RankByProfit
	})
}

func less(a, b decimal.Decimal, pa, pb string) bool {
	if c := a.Cmp(b); c != 0 {
		return c > 0
	}
	return pa < pb
}
