// Package balance implements the two-phase wager ledger: funds are locked when
// a bet is placed and released exactly once when it settles or expires.
//
// Every operation validates before it writes, so a rejected call leaves the
// balance unchanged.
package balance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// CanBet reports whether amount can be locked from the spendable balance.
func CanBet(b model.PlayerBalance, amount decimal.Decimal) bool {
	return !amount.IsNegative() && b.SpendableWager.GreaterThanOrEqual(amount)
}

// Lock moves amount from spendable to locked.
func Lock(b *model.PlayerBalance, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if b.SpendableWager.LessThan(amount) {
		return fmt.Errorf("%w: spendable %s, need %s", ErrInsufficientFunds, b.SpendableWager, amount)
	}
	b.SpendableWager = b.SpendableWager.Sub(amount)
	b.LockedWager = b.LockedWager.Add(amount)
	return nil
}

// Unlock moves amount from locked back to spendable.
func Unlock(b *model.PlayerBalance, amount decimal.Decimal) error {
	if err := checkLocked(b, amount); err != nil {
		return err
	}
	b.LockedWager = b.LockedWager.Sub(amount)
	b.SpendableWager = b.SpendableWager.Add(amount)
	return nil
}

// Forfeit releases amount from locked without returning it to spendable.
// It is the loss leg: the principal left spendable when it was locked.
func Forfeit(b *model.PlayerBalance, amount decimal.Decimal) error {
	if err := checkLocked(b, amount); err != nil {
		return err
	}
	b.LockedWager = b.LockedWager.Sub(amount)
	return nil
}

// Settle releases the lock held for bet and applies the outcome. A payout of
// zero is a loss; anything else is the gross payout of a win. The sum of
// spendable and locked changes by exactly payout - bet.
func Settle(b *model.PlayerBalance, bet, payout decimal.Decimal) error {
	if payout.IsNegative() {
		return ErrNegativeAmount
	}
	if err := checkLocked(b, bet); err != nil {
		return err
	}
	if payout.IsZero() {
		return Forfeit(b, bet)
	}
	b.LockedWager = b.LockedWager.Sub(bet)
	b.SpendableWager = b.SpendableWager.Add(payout)
	return nil
}

// Deposit adds wager funds to the spendable balance.
func Deposit(b *model.PlayerBalance, amount decimal.Decimal) error {
	return CreditWinnings(b, amount)
}

// CreditWinnings adds amount to the spendable wager balance.
func CreditWinnings(b *model.PlayerBalance, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	b.SpendableWager = b.SpendableWager.Add(amount)
	return nil
}

// CreditReward adds amount to the reward balance.
func CreditReward(b *model.PlayerBalance, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	b.SpendableReward = b.SpendableReward.Add(amount)
	return nil
}

// DebitReward removes amount from the reward balance. It returns false and
// leaves the balance unchanged when the reward balance is too small.
func DebitReward(b *model.PlayerBalance, amount decimal.Decimal) bool {
	if amount.IsNegative() || b.SpendableReward.LessThan(amount) {
		return false
	}
	b.SpendableReward = b.SpendableReward.Sub(amount)
	return true
}

// Total returns spendable plus locked wager funds.
func Total(b model.PlayerBalance) decimal.Decimal {
	return b.SpendableWager.Add(b.LockedWager)
}

func checkLocked(b *model.PlayerBalance, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if b.LockedWager.LessThan(amount) {
		return fmt.Errorf("%w: locked %s, need %s", ErrInsufficientFunds, b.LockedWager, amount)
	}
	return nil
}
