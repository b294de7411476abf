package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/modifier"
	"coinflip-settlement/internal/pkg/lock"
	"coinflip-settlement/internal/pkg/metrics"
	"coinflip-settlement/internal/repository"
	"coinflip-settlement/internal/settlement"
)

// DiscountService sells house-edge modifiers for reward currency.
type DiscountService struct {
	store       *repository.Store
	engine      *settlement.Engine
	locks       *lock.KeyedLock
	lockTimeout time.Duration
	now         func() time.Time
}

// NewDiscountService creates a new DiscountService instance.
func NewDiscountService(
	store *repository.Store,
	engine *settlement.Engine,
	locks *lock.KeyedLock,
	lockTimeout time.Duration,
) *DiscountService {
	return &DiscountService{
		store:       store,
		engine:      engine,
		locks:       locks,
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Purchase charges the player's reward balance and grants the modifier,
// replacing any modifier they already held.
func (s *DiscountService) Purchase(ctx context.Context, player string, reductionBP, uses int64, duration time.Duration) (*model.HouseEdgeModifier, error) {
	ts := s.now().Unix()
	req := settlement.DiscountRequest{
		Player:          player,
		ReductionBP:     reductionBP,
		Uses:            uses,
		DurationSeconds: int64(duration / time.Second),
		Timestamp:       ts,
	}

	var granted model.HouseEdgeModifier
	err := s.locks.WithLockContext(ctx, player, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(r *repository.Repositories) error {
			bal, err := r.Balances.GetForUpdate(ctx, player)
			if err != nil {
				return err
			}
			usage, err := r.Analytics.EdgeUsageForUpdate(ctx, analytics.DayBucket(ts))
			if err != nil {
				return err
			}

			m, cost, err := s.engine.PurchaseDiscount(req, bal, usage)
			if err != nil {
				return err
			}
			granted = m

			if err := r.Balances.Save(ctx, bal); err != nil {
				return err
			}
			if err := r.Analytics.SaveEdgeUsage(ctx, usage); err != nil {
				return err
			}
			if err := r.Modifiers.Save(ctx, &granted); err != nil {
				return err
			}
			_, err = r.Ledger.Append(ctx, player, model.LedgerDiscountPurchase, cost.Neg(), "")
			return err
		})
	})
	if err != nil {
		metrics.SettlementErrors.WithLabelValues("discount").Inc()
		return nil, fmt.Errorf("failed to purchase discount: %w", err)
	}

	metrics.DiscountsPurchased.Inc()
	log.Info().
		Str("player", player).
		Int64("reduction_bp", granted.ReductionBP).
		Int64("uses", granted.RemainingUses).
		Int64("expires", granted.ExpiryTimestamp).
		Msg("Discount purchased")

	return &granted, nil
}

// ActiveModifier returns the player's modifier if it can still apply now,
// or nil.
func (s *DiscountService) ActiveModifier(ctx context.Context, player string) (*model.HouseEdgeModifier, error) {
	m, err := s.store.Modifiers.Get(ctx, player)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !modifier.IsActive(m, s.now().Unix()) {
		return nil, nil
	}
	return m, nil
}

// EffectiveHouseEdge returns the edge the player's next game would settle at.
func (s *DiscountService) EffectiveHouseEdge(ctx context.Context, player string) (int64, error) {
	m, err := s.ActiveModifier(ctx, player)
	if err != nil {
		return 0, err
	}
	def := s.engine.Settings().DefaultHouseEdgeBP
	return modifier.EffectiveHouseEdge(def, modifier.Peek(m, s.now().Unix())), nil
}

// PruneExpired deletes modifiers that can no longer apply.
func (s *DiscountService) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.store.Modifiers.DeleteExpired(ctx, s.now().Unix())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("Pruned expired modifiers")
	}
	return n, nil
}
