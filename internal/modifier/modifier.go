// Package modifier manages a player's house-edge discount: a reduction in
// basis points that is usable a fixed number of times before an expiry.
package modifier

import (
	"errors"
	"fmt"

	"coinflip-settlement/internal/model"
)

// Errors for granting a modifier.
var (
	ErrReductionTooLarge = errors.New("house edge reduction exceeds the configured maximum")
	ErrInvalidReduction  = errors.New("house edge reduction must be positive")
	ErrDurationTooLong   = errors.New("modifier duration exceeds the configured maximum")
	ErrInvalidDuration   = errors.New("modifier duration must be positive")
	ErrInvalidUses       = errors.New("modifier must grant at least one use")
)

// Limits bound what a single grant may contain.
type Limits struct {
	MaxReductionBP     int64
	MaxDurationSeconds int64
}

// IsActive reports whether the modifier still applies at now.
// The expiry timestamp itself is inclusive.
func IsActive(m *model.HouseEdgeModifier, now int64) bool {
	return m != nil && m.RemainingUses > 0 && now <= m.ExpiryTimestamp
}

// Peek returns the reduction Consume would return, without using it up.
func Peek(m *model.HouseEdgeModifier, now int64) int64 {
	if !IsActive(m, now) {
		return 0
	}
	return m.ReductionBP
}

// Consume uses one application of the modifier and returns its reduction.
// An inactive or expired modifier is left untouched and yields 0.
func Consume(m *model.HouseEdgeModifier, now int64) int64 {
	if !IsActive(m, now) {
		return 0
	}
	m.RemainingUses--
	return m.ReductionBP
}

// Grant builds a fresh modifier. Storing it replaces whatever the player held
// before; remaining uses and reductions are never merged.
func Grant(player string, reductionBP, uses, expiry int64) model.HouseEdgeModifier {
	return model.HouseEdgeModifier{
		Player:          player,
		RemainingUses:   uses,
		ReductionBP:     reductionBP,
		ExpiryTimestamp: expiry,
	}
}

// ValidateGrant checks a requested grant against the configured limits.
func ValidateGrant(l Limits, reductionBP, uses, durationSeconds int64) error {
	if reductionBP <= 0 {
		return ErrInvalidReduction
	}
	if reductionBP > l.MaxReductionBP {
		return fmt.Errorf("%w: %d > %d", ErrReductionTooLarge, reductionBP, l.MaxReductionBP)
	}
	if uses <= 0 {
		return ErrInvalidUses
	}
	if durationSeconds <= 0 {
		return ErrInvalidDuration
	}
	if durationSeconds > l.MaxDurationSeconds {
		return fmt.Errorf("%w: %ds > %ds", ErrDurationTooLong, durationSeconds, l.MaxDurationSeconds)
	}
	return nil
}

// EffectiveHouseEdge applies a reduction to the default edge, clamping at 0.
func EffectiveHouseEdge(defaultBP, reductionBP int64) int64 {
	if reductionBP >= defaultBP {
		return 0
	}
	return defaultBP - reductionBP
}
