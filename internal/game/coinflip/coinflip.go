// Package coinflip implements settlement for the two-sided coin flip game.
package coinflip

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/game"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/pkg/bps"
)

// GameType is the registry key and rollup key for coin flip.
const GameType = "coin_flip"

// fairMultiplierBP is the fair 2x payout of a 50/50 bet, in basis points.
const fairMultiplierBP = 2 * bps.Scale

// Errors for coin flip settlement.
var (
	ErrInvalidHouseEdge   = errors.New("house edge must be in [0, 10000) basis points")
	ErrInvalidBet         = errors.New("bet amount must not be negative")
	ErrInvalidSide        = errors.New("invalid coin side")
	ErrInvalidRandomValue = errors.New("random value must be a non-negative integer")
)

// CoinFlip implements game.Game.
type CoinFlip struct{}

// New creates a CoinFlip game.
func New() *CoinFlip {
	return &CoinFlip{}
}

// Type returns the game type key.
func (c *CoinFlip) Type() string {
	return GameType
}

// Name returns the game's display name.
func (c *CoinFlip) Name() string {
	return "Coin Flip"
}

// Description returns a brief description of the game.
func (c *CoinFlip) Description() string {
	return "Pick heads or tails. A correct call pays 2x the bet, reduced by the house edge."
}

// ResolveSide maps a random value onto a side by parity.
func (c *CoinFlip) ResolveSide(randomValue string) (model.Side, error) {
	return SideFromRandom(randomValue)
}

// Settle computes the outcome for one bet.
func (c *CoinFlip) Settle(bet decimal.Decimal, chosen, actual model.Side, houseEdgeBP int64) (game.Outcome, error) {
	return Settle(bet, chosen, actual, houseEdgeBP)
}

// ValidateHouseEdge rejects edges that would make the payout undefined.
func ValidateHouseEdge(houseEdgeBP int64) error {
	if houseEdgeBP < 0 || houseEdgeBP >= bps.Scale {
		return fmt.Errorf("%w: got %d", ErrInvalidHouseEdge, houseEdgeBP)
	}
	return nil
}

// Settle resolves a bet:
//   - chosen != actual: payout = 0, net = -bet
//   - chosen == actual: payout = floor(bet * 20000 / (10000 - edge)), net = payout - bet
//
// The edge is validated before anything else, so an invalid edge never divides.
func Settle(bet decimal.Decimal, chosen, actual model.Side, houseEdgeBP int64) (game.Outcome, error) {
	if err := ValidateHouseEdge(houseEdgeBP); err != nil {
		return game.Outcome{}, err
	}
	if bet.IsNegative() {
		return game.Outcome{}, ErrInvalidBet
	}
	if !chosen.Valid() || !actual.Valid() {
		return game.Outcome{}, ErrInvalidSide
	}

	if chosen != actual {
		return game.Outcome{
			PlayerWon: false,
			Payout:    decimal.Zero,
			NetResult: bet.Neg(),
		}, nil
	}

	payout := CalculatePayout(bet, houseEdgeBP)
	return game.Outcome{
		PlayerWon: true,
		Payout:    payout,
		NetResult: payout.Sub(bet),
	}, nil
}

// CalculatePayout returns the gross payout of a winning bet.
// Callers must validate houseEdgeBP first.
func CalculatePayout(bet decimal.Decimal, houseEdgeBP int64) decimal.Decimal {
	return bps.MulDiv(bet, fairMultiplierBP, bps.Scale-houseEdgeBP)
}

// ExpectedPayoutMultiplierBP returns the gross multiplier a win pays at the
// given edge, in basis points (20000 at zero edge).
func ExpectedPayoutMultiplierBP(houseEdgeBP int64) (int64, error) {
	if err := ValidateHouseEdge(houseEdgeBP); err != nil {
		return 0, err
	}
	return fairMultiplierBP * bps.Scale / (bps.Scale - houseEdgeBP), nil
}

// SideFromRandom maps a random value onto a side: even is heads, odd is tails.
// Decimal and 0x-prefixed hexadecimal values are accepted.
func SideFromRandom(randomValue string) (model.Side, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(randomValue), 0)
	if !ok || v.Sign() < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRandomValue, randomValue)
	}
	if v.Bit(0) == 0 {
		return model.SideHeads, nil
	}
	return model.SideTails, nil
}
