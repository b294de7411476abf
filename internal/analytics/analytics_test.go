package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"coinflip-settlement/internal/model"
)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestDayBucket(t *testing.T) {
	tests := []struct {
		ts   int64
		want int64
	}{
		{0, 0},
		{86399, 0},
		{86400, 86400},
		{86500, 86400},
		{1_700_000_000, 1_699_920_000},
		{-1, -86400},
		{-86400, -86400},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DayBucket(tt.ts), "DayBucket(%d)", tt.ts)
	}
}

func TestWinRateBP(t *testing.T) {
	assert.Equal(t, int64(0), WinRateBP(0, 0))
	assert.Equal(t, int64(5000), WinRateBP(1, 2))
	assert.Equal(t, int64(6666), WinRateBP(2, 3))
}

func TestRecordDaily(t *testing.T) {
	var d model.DailyAnalytics

	RecordDaily(&d, model.SettledGame{BetAmount: amt(100), PayoutAmount: amt(210), PlayerWon: true}, amt(1), true)
	RecordDaily(&d, model.SettledGame{BetAmount: amt(300)}, decimal.Zero, false)

	assert.Equal(t, int64(2), d.TotalGames)
	assert.Equal(t, int64(1), d.UniquePlayers)
	assert.True(t, d.TotalVolume.Equal(amt(400)))
	assert.True(t, d.TotalPayouts.Equal(amt(210)))
	assert.True(t, d.HouseProfit.Equal(amt(190)))
	assert.True(t, d.AverageBetSize.Equal(amt(200)))
	assert.True(t, d.RewardDistributed.Equal(amt(1)))
	assert.Equal(t, int64(4750), ProfitMarginBP(d))
	assert.Equal(t, int64(4750), HouseEdgePercentageBP(d))
}

func TestRecordDaily_NegativeHouseProfit(t *testing.T) {
	var d model.DailyAnalytics

	RecordDaily(&d, model.SettledGame{BetAmount: amt(100), PayoutAmount: amt(210), PlayerWon: true}, decimal.Zero, true)

	assert.True(t, d.HouseProfit.Equal(amt(-110)), "house profit = %s", d.HouseProfit)
	assert.Equal(t, int64(-11000), ProfitMarginBP(d))
}

func TestZeroSampleRates(t *testing.T) {
	assert.Equal(t, int64(0), ProfitMarginBP(model.DailyAnalytics{}))
	assert.Equal(t, int64(0), HouseEdgePercentageBP(model.DailyAnalytics{}))
}

func TestRecordGamePerformance(t *testing.T) {
	var p model.GamePerformance

	RecordGamePerformance(&p, model.SettledGame{BetAmount: amt(100), PayoutAmount: amt(210), PlayerWon: true}, 4)
	RecordGamePerformance(&p, model.SettledGame{BetAmount: amt(100)}, 6)
	RecordGamePerformance(&p, model.SettledGame{BetAmount: amt(200)}, -3)

	assert.Equal(t, int64(3), p.TotalGames)
	assert.Equal(t, int64(1), p.GamesWon)
	assert.True(t, p.HouseProfit.Equal(amt(190)))
	assert.Equal(t, int64(4750), p.HouseEdgeAchievedBP)
	assert.Equal(t, int64(3333), p.PlayerWinRateBP)
	assert.Equal(t, int64(10), p.TotalDurationSeconds)
	assert.Equal(t, int64(3), p.AverageDurationSeconds)
}

func TestRecordHouseEdgeUsage(t *testing.T) {
	var h model.HouseEdgeAnalytics

	RecordHouseEdgeUsage(&h, model.SettledGame{HouseEdgeBP: 300, DiscountApplied: true})
	RecordHouseEdgeUsage(&h, model.SettledGame{HouseEdgeBP: 500})
	RecordHouseEdgeUsage(&h, model.SettledGame{HouseEdgeBP: 500})
	RecordHouseEdgeUsage(&h, model.SettledGame{HouseEdgeBP: 500})
	RecordDiscountPurchase(&h, 400, amt(40))

	assert.Equal(t, int64(4), h.TotalGames)
	assert.Equal(t, int64(1), h.GamesWithDiscount)
	assert.Equal(t, int64(2500), h.UsageRateBP)
	assert.Equal(t, int64(450), h.AverageHouseEdgeBP)
	assert.Equal(t, int64(400), h.TotalBasisPointsPurchased)
	assert.True(t, h.TotalRewardSpent.Equal(amt(40)))
}

func TestRandomnessAnalytics(t *testing.T) {
	var r model.RandomnessAnalytics

	RecordRandomnessRequest(&r)
	RecordRandomnessRequest(&r)
	RecordRandomnessRequest(&r)
	RecordFulfillment(&r, 3)
	RecordFulfillment(&r, 6)
	RecordFailedFulfillment(&r)

	assert.Equal(t, int64(3), r.TotalRequests)
	assert.Equal(t, int64(2), r.SuccessfulFulfillments)
	assert.Equal(t, int64(1), r.FailedFulfillments)
	assert.Equal(t, int64(4), r.AverageFulfillmentSeconds)
}

func TestUpdateLeaderboard(t *testing.T) {
	e := model.LeaderboardEntry{Player: "p1", RankByVolume: 9, RankByProfit: 9}

	UpdateLeaderboard(&e, amt(100), amt(-100), 50)
	UpdateLeaderboard(&e, amt(100), amt(110), 60)

	assert.True(t, e.TotalVolume.Equal(amt(200)))
	assert.True(t, e.NetProfit.Equal(amt(10)))
	assert.Equal(t, int64(60), e.LastUpdated)
	assert.Equal(t, int64(9), e.RankByVolume, "ranks are not maintained on write")
}

func TestRank(t *testing.T) {
	entries := []model.LeaderboardEntry{
		{Player: "carol", TotalVolume: amt(500), NetProfit: amt(-50)},
		{Player: "alice", TotalVolume: amt(900), NetProfit: amt(10)},
		{Player: "bob", TotalVolume: amt(500), NetProfit: amt(300)},
		{Player: "dave", TotalVolume: amt(100), NetProfit: amt(10)},
	}

	ranked := Rank(entries)
	require.Len(t, ranked, 4)

	byPlayer := make(map[string]model.LeaderboardEntry)
	for _, e := range ranked {
		byPlayer[e.Player] = e
	}
	assert.Equal(t, int64(1), byPlayer["alice"].RankByVolume)
	assert.Equal(t, int64(2), byPlayer["bob"].RankByVolume)
	assert.Equal(t, int64(3), byPlayer["carol"].RankByVolume)
	assert.Equal(t, int64(4), byPlayer["dave"].RankByVolume)

	assert.Equal(t, int64(1), byPlayer["bob"].RankByProfit)
	assert.Equal(t, int64(2), byPlayer["alice"].RankByProfit)
	assert.Equal(t, int64(3), byPlayer["dave"].RankByProfit)
	assert.Equal(t, int64(4), byPlayer["carol"].RankByProfit)

	assert.Equal(t, "alice", ranked[0].Player)
	assert.Equal(t, int64(0), entries[0].RankByVolume, "input is not modified")

	SortByProfit(ranked)
	assert.Equal(t, "bob", ranked[0].Player)
	assert.Equal(t, "carol", ranked[3].Player)
}

func genGame(t *rapid.T, label string) model.SettledGame {
	bet := rapid.Int64Range(0, 1_000_000).Draw(t, label+"_bet")
	won := rapid.Bool().Draw(t, label+"_won")
	g := model.SettledGame{
		BetAmount:       amt(bet),
		PlayerWon:       won,
		HouseEdgeBP:     rapid.Int64Range(0, 9999).Draw(t, label+"_edge"),
		DiscountApplied: rapid.Bool().Draw(t, label+"_discount"),
	}
	if won {
		g.PayoutAmount = amt(bet * 2)
	}
	return g
}

// TestDailyFoldCommutativeProperty tests that folding order does not matter.
// *For any* two games g1 and g2, folding g1 then g2 into the day, game-type
// and edge-usage buckets yields the same buckets as folding g2 then g1.
func TestDailyFoldCommutativeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g1 := genGame(t, "g1")
		g2 := genGame(t, "g2")
		r1 := amt(rapid.Int64Range(0, 100).Draw(t, "r1"))
		r2 := amt(rapid.Int64Range(0, 100).Draw(t, "r2"))
		d1 := rapid.Int64Range(0, 600).Draw(t, "d1")
		d2 := rapid.Int64Range(0, 600).Draw(t, "d2")

		var a, b model.DailyAnalytics
		RecordDaily(&a, g1, r1, true)
		RecordDaily(&a, g2, r2, false)
		RecordDaily(&b, g2, r2, true)
		RecordDaily(&b, g1, r1, false)
		if !dailyEqual(a, b) {
			t.Fatalf("daily fold not commutative: %+v vs %+v", a, b)
		}

		var pa, pb model.GamePerformance
		RecordGamePerformance(&pa, g1, d1)
		RecordGamePerformance(&pa, g2, d2)
		RecordGamePerformance(&pb, g2, d2)
		RecordGamePerformance(&pb, g1, d1)
		if pa.TotalGames != pb.TotalGames || pa.GamesWon != pb.GamesWon ||
			!pa.HouseProfit.Equal(pb.HouseProfit) || pa.HouseEdgeAchievedBP != pb.HouseEdgeAchievedBP ||
			pa.PlayerWinRateBP != pb.PlayerWinRateBP || pa.AverageDurationSeconds != pb.AverageDurationSeconds {
			t.Fatalf("game performance fold not commutative: %+v vs %+v", pa, pb)
		}

		var ha, hb model.HouseEdgeAnalytics
		RecordHouseEdgeUsage(&ha, g1)
		RecordHouseEdgeUsage(&ha, g2)
		RecordHouseEdgeUsage(&hb, g2)
		RecordHouseEdgeUsage(&hb, g1)
		if ha != hb {
			t.Fatalf("edge usage fold not commutative: %+v vs %+v", ha, hb)
		}
	})
}

func dailyEqual(a, b model.DailyAnalytics) bool {
	return a.TotalGames == b.TotalGames &&
		a.UniquePlayers == b.UniquePlayers &&
		a.TotalVolume.Equal(b.TotalVolume) &&
		a.TotalPayouts.Equal(b.TotalPayouts) &&
		a.HouseProfit.Equal(b.HouseProfit) &&
		a.RewardDistributed.Equal(b.RewardDistributed) &&
		a.AverageBetSize.Equal(b.AverageBetSize)
}

// TestRankProperty tests that ranks are a permutation of 1..n.
// *For any* set of leaderboard entries, both rank columns hold each value in
// 1..n exactly once, and a higher volume never ranks below a lower one.
func TestRankProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		entries := make([]model.LeaderboardEntry, n)
		for i := range entries {
			entries[i] = model.LeaderboardEntry{
				Player:      rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "player"),
				TotalVolume: amt(rapid.Int64Range(0, 1000).Draw(t, "volume")),
				NetProfit:   amt(rapid.Int64Range(-1000, 1000).Draw(t, "profit")),
			}
		}

		ranked := Rank(entries)
		seenVol := make(map[int64]bool)
		seenProfit := make(map[int64]bool)
		for _, e := range ranked {
			if e.RankByVolume < 1 || e.RankByVolume > int64(n) || seenVol[e.RankByVolume] {
				t.Fatalf("bad volume rank %d", e.RankByVolume)
			}
			if e.RankByProfit < 1 || e.RankByProfit > int64(n) || seenProfit[e.RankByProfit] {
				t.Fatalf("bad profit rank %d", e.RankByProfit)
			}
			seenVol[e.RankByVolume] = true
			seenProfit[e.RankByProfit] = true
		}
		for i := 1; i < len(ranked); i++ {
			if ranked[i].TotalVolume.GreaterThan(ranked[i-1].TotalVolume) {
				t.Fatalf("volume %s ranked below %s", ranked[i].TotalVolume, ranked[i-1].TotalVolume)
			}
		}
	})
}
