package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/balance"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/pkg/lock"
	"coinflip-settlement/internal/repository"
	"coinflip-settlement/internal/stats"
)

// ErrInvalidAmount is returned for zero or negative deposits.
var ErrInvalidAmount = errors.New("invalid amount: must be positive")

// AccountService handles player funds outside of games.
type AccountService struct {
	store       *repository.Store
	locks       *lock.KeyedLock
	lockTimeout time.Duration
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store *repository.Store, locks *lock.KeyedLock, lockTimeout time.Duration) *AccountService {
	return &AccountService{
		store:       store,
		locks:       locks,
		lockTimeout: lockTimeout,
	}
}

// Deposit credits wager funds to a player's spendable balance.
func (s *AccountService) Deposit(ctx context.Context, player string, amount decimal.Decimal) (*model.PlayerBalance, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var bal *model.PlayerBalance
	err := s.locks.WithLockContext(ctx, player, s.lockTimeout, func() error {
		return s.store.WithTx(ctx, func(r *repository.Repositories) error {
			var err error
			bal, err = r.Balances.GetForUpdate(ctx, player)
			if err != nil {
				return err
			}
			if err := balance.Deposit(bal, amount); err != nil {
				return err
			}
			if err := r.Balances.Save(ctx, bal); err != nil {
				return err
			}
			_, err = r.Ledger.Append(ctx, player, model.LedgerDeposit, amount, "")
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deposit: %w", err)
	}

	log.Info().Str("player", player).Str("amount", amount.String()).Msg("Deposit credited")
	return bal, nil
}

// GetBalance retrieves a player's balance. A player who never held funds
// has a zero balance.
func (s *AccountService) GetBalance(ctx context.Context, player string) (*model.PlayerBalance, error) {
	bal, err := s.store.Balances.Get(ctx, player)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.PlayerBalance{
			Player:          player,
			SpendableWager:  decimal.Zero,
			SpendableReward: decimal.Zero,
			LockedWager:     decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// StatsSummary is a player's lifetime stats with the derived numbers.
type StatsSummary struct {
	model.PlayerStats
	WinRateBP  int64           `json:"win_rate_bp"`
	ProfitLoss decimal.Decimal `json:"profit_loss"`
}

// GetStats retrieves a player's lifetime stats. A player who never played
// gets zeroed stats.
func (s *AccountService) GetStats(ctx context.Context, player string) (*StatsSummary, error) {
	st, err := s.store.Stats.Get(ctx, player)
	if errors.Is(err, repository.ErrNotFound) {
		st = &model.PlayerStats{
			Player:        player,
			TotalBet:      decimal.Zero,
			TotalWinnings: decimal.Zero,
			TotalLosses:   decimal.Zero,
			RewardEarned:  decimal.Zero,
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return &StatsSummary{
		PlayerStats: *st,
		WinRateBP:   stats.WinRate(*st),
		ProfitLoss:  stats.ProfitLoss(*st),
	}, nil
}

// GetLedger returns a player's most recent balance movements.
func (s *AccountService) GetLedger(ctx context.Context, player string, limit int) ([]*model.LedgerEntry, error) {
	return s.store.Ledger.ListByPlayer(ctx, player, limit)
}
