// Package game defines the settlement contract shared by every wagering game
// and the registry that maps game types to implementations.
package game

import (
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
)

// Outcome is the result of settling one bet.
type Outcome struct {
	PlayerWon bool
	Payout    decimal.Decimal // Gross amount returned to the player, 0 on a loss
	NetResult decimal.Decimal // Payout - bet on a win, -bet on a loss
}

// Game is implemented by every game the settlement pipeline can resolve.
// A new game type only needs to implement this interface and be registered.
type Game interface {
	// Type is the stable key used for game-type rollups (e.g. "coin_flip").
	Type() string

	// Name returns the display name.
	Name() string

	// Description returns a brief description of the rules.
	Description() string

	// ResolveSide maps the opaque value delivered by the randomness source
	// onto the side that was drawn.
	ResolveSide(randomValue string) (model.Side, error)

	// Settle computes the outcome for one bet at the given house edge.
	// It must not mutate any state and must fail before dividing when the
	// edge is out of range.
	Settle(bet decimal.Decimal, chosen, actual model.Side, houseEdgeBP int64) (Outcome, error)
}
