package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/repository"
)

// DayReport is everything recorded for one day bucket.
type DayReport struct {
	Day                   int64                     `json:"day"`
	Daily                 model.DailyAnalytics      `json:"daily"`
	HouseEdgePercentageBP int64                     `json:"house_edge_percentage_bp"`
	ProfitMarginBP        int64                     `json:"profit_margin_bp"`
	Games                 []*model.GamePerformance  `json:"games"`
	EdgeUsage             model.HouseEdgeAnalytics  `json:"edge_usage"`
	Randomness            model.RandomnessAnalytics `json:"randomness"`
}

// AnalyticsService answers platform-wide analytics queries.
type AnalyticsService struct {
	repo *repository.AnalyticsRepository
}

// NewAnalyticsService creates a new AnalyticsService instance.
func NewAnalyticsService(repo *repository.AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// Day returns the report for the bucket containing ts. Buckets with no
// activity report zeros.
func (s *AnalyticsService) Day(ctx context.Context, ts int64) (*DayReport, error) {
	day := analytics.DayBucket(ts)
	r := &DayReport{
		Day: day,
		Daily: model.DailyAnalytics{
			Day:               day,
			TotalVolume:       decimal.Zero,
			HouseProfit:       decimal.Zero,
			TotalPayouts:      decimal.Zero,
			RewardDistributed: decimal.Zero,
			AverageBetSize:    decimal.Zero,
		},
		EdgeUsage:  model.HouseEdgeAnalytics{Day: day, TotalRewardSpent: decimal.Zero},
		Randomness: model.RandomnessAnalytics{Day: day},
	}

	d, err := s.repo.GetDaily(ctx, day)
	if err := keepZero(err); err != nil {
		return nil, err
	}
	if d != nil {
		r.Daily = *d
	}
	r.HouseEdgePercentageBP = analytics.HouseEdgePercentageBP(r.Daily)
	r.ProfitMarginBP = analytics.ProfitMarginBP(r.Daily)

	if r.Games, err = s.repo.ListPerformance(ctx, day); err != nil {
		return nil, err
	}

	h, err := s.repo.GetEdgeUsage(ctx, day)
	if err := keepZero(err); err != nil {
		return nil, err
	}
	if h != nil {
		r.EdgeUsage = *h
	}

	rnd, err := s.repo.GetRandomness(ctx, day)
	if err := keepZero(err); err != nil {
		return nil, err
	}
	if rnd != nil {
		r.Randomness = *rnd
	}
	return r, nil
}

// GamePerformance returns one game type's rollup for the bucket containing ts.
func (s *AnalyticsService) GamePerformance(ctx context.Context, gameType string, ts int64) (*model.GamePerformance, error) {
	return s.repo.GetPerformance(ctx, gameType, analytics.DayBucket(ts))
}

func keepZero(err error) error {
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to load analytics: %w", err)
}
