// Package service orchestrates the settlement core against persistent state.
//
// Every operation that changes a player's funds takes the player's keyed
// lock and then runs one database transaction in which each keyed row is
// loaded FOR UPDATE, folded by the pure core, and written back.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/game/coinflip"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/pkg/lock"
	"coinflip-settlement/internal/pkg/metrics"
	"coinflip-settlement/internal/repository"
	"coinflip-settlement/internal/settlement"
	"coinflip-settlement/internal/stream"
)

// ErrMissingOutcomeID is returned when a bet carries no randomness request id.
var ErrMissingOutcomeID = errors.New("random outcome id is required")

// SettledPublisher receives every settled game after its transaction commits.
type SettledPublisher interface {
	PublishSettled(ctx context.Context, g *model.SettledGame) error
}

// SettlementService places, settles and expires bets.
type SettlementService struct {
	store       *repository.Store
	engine      *settlement.Engine
	locks       *lock.KeyedLock
	publisher   SettledPublisher
	lockTimeout time.Duration
	now         func() time.Time
	latestBlock atomic.Uint64
}

// NewSettlementService creates a new SettlementService instance.
// publisher may be nil.
func NewSettlementService(
	store *repository.Store,
	engine *settlement.Engine,
	locks *lock.KeyedLock,
	publisher SettledPublisher,
	lockTimeout time.Duration,
) *SettlementService {
	return &SettlementService{
		store:       store,
		engine:      engine,
		locks:       locks,
		publisher:   publisher,
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// PlaceBetRequest describes a bet arriving from the game client.
type PlaceBetRequest struct {
	Player          string
	GameType        string
	Amount          decimal.Decimal
	ChosenSide      model.Side
	RandomOutcomeID string
	Block           uint64
}

// PlaceBet locks the stake and records the pending game.
func (s *SettlementService) PlaceBet(ctx context.Context, req PlaceBetRequest) (*model.PendingGame, error) {
	if req.RandomOutcomeID == "" {
		return nil, ErrMissingOutcomeID
	}
	if req.GameType == "" {
		req.GameType = coinflip.GameType
	}
	ts := s.now().Unix()

	var pending model.PendingGame
	err := s.locks.WithLockContext(ctx, req.Player, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(r *repository.Repositories) error {
			bal, err := r.Balances.GetForUpdate(ctx, req.Player)
			if err != nil {
				return err
			}
			rnd, err := r.Analytics.RandomnessForUpdate(ctx, analytics.DayBucket(ts))
			if err != nil {
				return err
			}

			pending, err = s.engine.Place(settlement.Bet{
				ID:              uuid.NewString(),
				RandomOutcomeID: req.RandomOutcomeID,
				Player:          req.Player,
				GameType:        req.GameType,
				Amount:          req.Amount,
				ChosenSide:      req.ChosenSide,
				Timestamp:       ts,
				Block:           req.Block,
			}, bal, rnd)
			if err != nil {
				return err
			}

			if err := r.Balances.Save(ctx, bal); err != nil {
				return err
			}
			if err := r.Analytics.SaveRandomness(ctx, rnd); err != nil {
				return err
			}
			if err := r.Games.CreatePending(ctx, &pending); err != nil {
				return err
			}
			_, err = r.Ledger.Append(ctx, req.Player, model.LedgerBetLocked, req.Amount.Neg(), pending.ID)
			return err
		})
	})
	if err != nil {
		metrics.SettlementErrors.WithLabelValues("place").Inc()
		return nil, fmt.Errorf("failed to place bet: %w", err)
	}

	s.observeBlock(req.Block)
	metrics.BetsPlaced.WithLabelValues(pending.GameType).Inc()
	log.Info().
		Str("game_id", pending.ID).
		Str("player", pending.Player).
		Str("amount", pending.BetAmount.String()).
		Str("side", pending.ChosenSide.String()).
		Msg("Bet placed")

	return &pending, nil
}

// SettleFulfillment settles the game waiting on requestID.
func (s *SettlementService) SettleFulfillment(ctx context.Context, requestID string, f settlement.Fulfillment) (*model.SettledGame, error) {
	// Unlocked read to learn whose lock to take.
	p, err := s.store.Games.GetPendingByOutcome(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var settled model.SettledGame
	err = s.locks.WithLockContext(ctx, p.Player, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(r *repository.Repositories) error {
			p, err := r.Games.GetPendingByOutcomeForUpdate(ctx, requestID)
			if err != nil {
				return err
			}
			if p.Status != model.GameStatusPending {
				return fmt.Errorf("%w: %s is %s", settlement.ErrGameNotPending, p.ID, p.Status)
			}
			l, err := loadLedgers(ctx, r, p, f.Timestamp)
			if err != nil {
				return err
			}

			settled, err = s.engine.Settle(*p, f, l)
			if err != nil {
				return err
			}

			if err := saveLedgers(ctx, r, l); err != nil {
				return err
			}
			if err := r.Games.SetStatus(ctx, p.ID, model.GameStatusSettled); err != nil {
				return err
			}
			if err := r.Games.InsertSettled(ctx, &settled); err != nil {
				return err
			}
			return appendSettlementEntries(ctx, r, settled)
		})
	})
	if err != nil {
		metrics.SettlementErrors.WithLabelValues("settle").Inc()
		return nil, fmt.Errorf("failed to settle game for request %s: %w", requestID, err)
	}

	s.observeBlock(f.BlockNumber)
	metrics.GamesSettled.WithLabelValues(settled.GameType, metrics.Result(settled.PlayerWon)).Inc()
	metrics.FulfillmentSeconds.Observe(float64(max(settled.Timestamp-settled.PlacedAt, 0)))
	log.Info().
		Str("game_id", settled.ID).
		Str("player", settled.Player).
		Bool("won", settled.PlayerWon).
		Str("payout", settled.PayoutAmount.String()).
		Int64("house_edge_bp", settled.HouseEdgeBP).
		Bool("discount_applied", settled.DiscountApplied).
		Msg("Game settled")

	if s.publisher != nil {
		if err := s.publisher.PublishSettled(ctx, &settled); err != nil {
			log.Warn().Err(err).Str("game_id", settled.ID).Msg("Failed to publish settled game")
		}
	}
	return &settled, nil
}

// HandleFulfillment adapts SettleFulfillment to the stream consumer.
// Fulfillments that can never succeed are logged and acknowledged.
func (s *SettlementService) HandleFulfillment(ctx context.Context, f stream.Fulfillment) error {
	_, err := s.SettleFulfillment(ctx, f.RequestID, settlement.Fulfillment{
		RandomValue: f.RandomValue,
		Timestamp:   f.Timestamp,
		BlockNumber: f.BlockNumber,
	})
	if err != nil && IsPermanent(err) {
		log.Error().Err(err).Str("request_id", f.RequestID).Msg("Dropping fulfillment")
		return nil
	}
	return err
}

// IsPermanent reports whether retrying the settlement cannot change the result.
func IsPermanent(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, settlement.ErrGameNotPending) ||
		errors.Is(err, settlement.ErrUnknownGame) ||
		errors.Is(err, coinflip.ErrInvalidRandomValue) ||
		errors.Is(err, coinflip.ErrInvalidHouseEdge)
}

// ExpireStale refunds up to limit pending games that have outlived the
// configured expiry at currentBlock. It returns how many were refunded.
func (s *SettlementService) ExpireStale(ctx context.Context, currentBlock uint64, limit int) (int, error) {
	expiry := s.engine.Settings().GameExpiryBlocks
	if expiry == 0 || currentBlock < expiry {
		return 0, nil
	}

	stale, err := s.store.Games.ListStale(ctx, currentBlock-expiry, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range stale {
		if err := s.expire(ctx, p.ID, p.Player, currentBlock); err != nil {
			if errors.Is(err, settlement.ErrGameNotPending) {
				continue
			}
			metrics.SettlementErrors.WithLabelValues("expire").Inc()
			log.Warn().Err(err).Str("game_id", p.ID).Msg("Failed to expire game")
			continue
		}
		expired++
	}

	if expired > 0 {
		metrics.GamesExpired.Add(float64(expired))
		log.Info().Int("count", expired).Uint64("block", currentBlock).Msg("Expired stale games")
	}
	return expired, nil
}

func (s *SettlementService) expire(ctx context.Context, gameID, player string, currentBlock uint64) error {
	ts := s.now().Unix()
	return s.locks.WithLockContext(ctx, player, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(r *repository.Repositories) error {
			p, err := r.Games.GetPendingForUpdate(ctx, gameID)
			if err != nil {
				return err
			}
			bal, err := r.Balances.GetForUpdate(ctx, p.Player)
			if err != nil {
				return err
			}
			rnd, err := r.Analytics.RandomnessForUpdate(ctx, analytics.DayBucket(ts))
			if err != nil {
				return err
			}

			if err := s.engine.Expire(*p, currentBlock, bal, rnd); err != nil {
				return err
			}

			if err := r.Balances.Save(ctx, bal); err != nil {
				return err
			}
			if err := r.Analytics.SaveRandomness(ctx, rnd); err != nil {
				return err
			}
			if err := r.Games.SetStatus(ctx, p.ID, model.GameStatusExpired); err != nil {
				return err
			}
			_, err = r.Ledger.Append(ctx, p.Player, model.LedgerBetRefunded, p.BetAmount, p.ID)
			return err
		})
	})
}

// LatestBlock returns the highest block number seen on a placed bet or a
// fulfillment. The expiry sweep measures game age against it.
func (s *SettlementService) LatestBlock() uint64 {
	return s.latestBlock.Load()
}

func (s *SettlementService) observeBlock(b uint64) {
	for {
		cur := s.latestBlock.Load()
		if b <= cur || s.latestBlock.CompareAndSwap(cur, b) {
			return
		}
	}
}

// GetPending retrieves a pending or finished bet by id.
func (s *SettlementService) GetPending(ctx context.Context, gameID string) (*model.PendingGame, error) {
	return s.store.Games.GetPending(ctx, gameID)
}

// GetSettled retrieves a settled game by id.
func (s *SettlementService) GetSettled(ctx context.Context, gameID string) (*model.SettledGame, error) {
	return s.store.Games.GetSettled(ctx, gameID)
}

// RecentGames returns a player's most recent settled games.
func (s *SettlementService) RecentGames(ctx context.Context, player string, limit int) ([]*model.SettledGame, error) {
	return s.store.Games.ListSettledByPlayer(ctx, player, limit)
}

func loadLedgers(ctx context.Context, r *repository.Repositories, p *model.PendingGame, ts int64) (settlement.Ledgers, error) {
	var (
		l   settlement.Ledgers
		err error
	)
	day := analytics.DayBucket(ts)

	if l.Balance, err = r.Balances.GetForUpdate(ctx, p.Player); err != nil {
		return l, err
	}
	if l.Stats, err = r.Stats.GetForUpdate(ctx, p.Player); err != nil {
		return l, err
	}
	if l.Modifier, err = r.Modifiers.GetForUpdate(ctx, p.Player); err != nil {
		return l, err
	}
	if l.Daily, err = r.Analytics.DailyForUpdate(ctx, day); err != nil {
		return l, err
	}
	if l.NewDailyPlayer, err = r.Analytics.MarkDailyPlayer(ctx, day, p.Player); err != nil {
		return l, err
	}
	if l.Performance, err = r.Analytics.PerformanceForUpdate(ctx, p.GameType, day); err != nil {
		return l, err
	}
	if l.EdgeUsage, err = r.Analytics.EdgeUsageForUpdate(ctx, day); err != nil {
		return l, err
	}
	if l.Randomness, err = r.Analytics.RandomnessForUpdate(ctx, day); err != nil {
		return l, err
	}
	if l.Leaderboard, err = r.Leaderboard.GetForUpdate(ctx, p.Player); err != nil {
		return l, err
	}
	return l, nil
}

func saveLedgers(ctx context.Context, r *repository.Repositories, l settlement.Ledgers) error {
	if err := r.Balances.Save(ctx, l.Balance); err != nil {
		return err
	}
	if err := r.Stats.Save(ctx, l.Stats); err != nil {
		return err
	}
	if l.Modifier != nil {
		if err := r.Modifiers.Save(ctx, l.Modifier); err != nil {
			return err
		}
	}
	if err := r.Analytics.SaveDaily(ctx, l.Daily); err != nil {
		return err
	}
	if err := r.Analytics.SavePerformance(ctx, l.Performance); err != nil {
		return err
	}
	if err := r.Analytics.SaveEdgeUsage(ctx, l.EdgeUsage); err != nil {
		return err
	}
	if err := r.Analytics.SaveRandomness(ctx, l.Randomness); err != nil {
		return err
	}
	return r.Leaderboard.Save(ctx, l.Leaderboard)
}

// appendSettlementEntries records the settling leg. The stake already left
// spendable with the bet_locked entry, so a loss records a zero amount.
func appendSettlementEntries(ctx context.Context, r *repository.Repositories, g model.SettledGame) error {
	if !g.PlayerWon {
		_, err := r.Ledger.Append(ctx, g.Player, model.LedgerBetLost, decimal.Zero, g.ID)
		return err
	}
	if _, err := r.Ledger.Append(ctx, g.Player, model.LedgerBetWon, g.PayoutAmount, g.ID); err != nil {
		return err
	}
	if g.RewardEarned.IsPositive() {
		_, err := r.Ledger.Append(ctx, g.Player, model.LedgerRewardCredited, g.RewardEarned, g.ID)
		return err
	}
	return nil
}
