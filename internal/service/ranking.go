package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/model"
)

// ErrUnknownRanking is returned for a ranking column other than volume or profit.
var ErrUnknownRanking = errors.New("unknown ranking: must be volume or profit")

// Ranking columns.
const (
	RankByVolume = "volume"
	RankByProfit = "profit"
)

// LeaderboardSource loads every leaderboard entry.
type LeaderboardSource interface {
	Snapshot(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// RankingService serves leaderboard ranks from a periodically refreshed
// snapshot. Settlement only updates totals; ranks exist only here.
type RankingService struct {
	source  LeaderboardSource
	maxAge  time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	ranked  []model.LeaderboardEntry // by volume
	profit  []model.LeaderboardEntry // by profit
	byName  map[string]model.LeaderboardEntry
	builtAt time.Time
}

// NewRankingService creates a new RankingService instance. A snapshot older
// than maxAge is rebuilt on the next read; zero rebuilds on every read.
func NewRankingService(source LeaderboardSource, maxAge time.Duration) *RankingService {
	return &RankingService{
		source: source,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Top returns the first limit entries ranked by the given column.
func (s *RankingService) Top(ctx context.Context, by string, limit int) ([]model.LeaderboardEntry, error) {
	if by == "" {
		by = RankByVolume
	}
	if by != RankByVolume && by != RankByProfit {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRanking, by)
	}
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.ranked
	if by == RankByProfit {
		list = s.profit
	}
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]model.LeaderboardEntry, limit)
	copy(out, list[:limit])
	return out, nil
}

// PlayerRank returns one player's ranked entry, or false if they never played.
func (s *RankingService) PlayerRank(ctx context.Context, player string) (model.LeaderboardEntry, bool, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return model.LeaderboardEntry{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byName[player]
	return e, ok, nil
}

// Refresh rebuilds the snapshot now.
func (s *RankingService) Refresh(ctx context.Context) error {
	entries, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}

	ranked := analytics.Rank(entries)
	profit := make([]model.LeaderboardEntry, len(ranked))
	copy(profit, ranked)
	analytics.SortByProfit(profit)

	byName := make(map[string]model.LeaderboardEntry, len(ranked))
	for _, e := range ranked {
		byName[e.Player] = e
	}

	s.mu.Lock()
	s.ranked, s.profit, s.byName = ranked, profit, byName
	s.builtAt = s.now()
	s.mu.Unlock()
	return nil
}

func (s *RankingService) ensureFresh(ctx context.Context) error {
	s.mu.RLock()
	fresh := !s.builtAt.IsZero() && s.maxAge > 0 && s.now().Sub(s.builtAt) < s.maxAge
	s.mu.RUnlock()
	if fresh {
		return nil
	}
	return s.Refresh(ctx)
}
