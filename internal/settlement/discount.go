package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/analytics"
	"coinflip-settlement/internal/balance"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/modifier"
)

// DiscountRequest asks for a house-edge reduction paid in reward currency.
type DiscountRequest struct {
	Player          string
	ReductionBP     int64
	Uses            int64
	DurationSeconds int64
	Timestamp       int64
}

// DiscountCost prices a discount: every basis point of reduction costs
// BasisPointCost per use.
func (s Settings) DiscountCost(reductionBP, uses int64) decimal.Decimal {
	return s.BasisPointCost.Mul(decimal.NewFromInt(reductionBP)).Mul(decimal.NewFromInt(uses))
}

// PurchaseDiscount charges the player's reward balance and returns the new
// modifier, which replaces any modifier the player held. The purchase is
// recorded in the day's edge analytics.
func (e *Engine) PurchaseDiscount(r DiscountRequest, bal *model.PlayerBalance, h *model.HouseEdgeAnalytics) (model.HouseEdgeModifier, decimal.Decimal, error) {
	if e.settings.Paused {
		return model.HouseEdgeModifier{}, decimal.Zero, ErrGamePaused
	}
	if err := modifier.ValidateGrant(e.settings.Discount, r.ReductionBP, r.Uses, r.DurationSeconds); err != nil {
		return model.HouseEdgeModifier{}, decimal.Zero, err
	}

	cost := e.settings.DiscountCost(r.ReductionBP, r.Uses)
	if cost.LessThan(e.settings.MinRewardPurchase) {
		return model.HouseEdgeModifier{}, decimal.Zero, fmt.Errorf("%w: %s < %s",
			ErrPurchaseTooSmall, cost, e.settings.MinRewardPurchase)
	}
	if !balance.DebitReward(bal, cost) {
		return model.HouseEdgeModifier{}, decimal.Zero, fmt.Errorf("%w: have %s, need %s",
			ErrInsufficientRewardBalance, bal.SpendableReward, cost)
	}

	analytics.RecordDiscountPurchase(h, r.ReductionBP*r.Uses, cost)
	return modifier.Grant(r.Player, r.ReductionBP, r.Uses, r.Timestamp+r.DurationSeconds), cost, nil
}
