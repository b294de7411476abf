// Package stats folds settled games into per-player lifetime counters.
package stats

import (
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/model"
)

// Record folds one settled game into s. rewardDelta is the reward currency
// earned by this game and is added as given.
func Record(s *model.PlayerStats, g model.SettledGame, rewardDelta decimal.Decimal) {
	s.TotalGames++
	s.TotalBet = s.TotalBet.Add(g.BetAmount)
	s.RewardEarned = s.RewardEarned.Add(rewardDelta)

	if g.PlayerWon {
		s.GamesWon++
		s.TotalWinnings = s.TotalWinnings.Add(g.PayoutAmount)
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
		return
	}

	s.GamesLost++
	s.TotalLosses = s.TotalLosses.Add(g.BetAmount)
	s.CurrentStreak = 0
}

// WinRate returns the share of games won in basis points, 0 with no games.
func WinRate(s model.PlayerStats) int64 {
	return analytics.WinRateBP(s.GamesWon, s.TotalGames)
}

// ProfitLoss returns lifetime winnings minus lifetime stake. It is signed.
func ProfitLoss(s model.PlayerStats) decimal.Decimal {
	return s.TotalWinnings.Sub(s.TotalBet)
}
