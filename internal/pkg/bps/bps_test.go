package bps

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, int64(0), Ratio(5, 0))
	assert.Equal(t, int64(5000), Ratio(1, 2))
	assert.Equal(t, int64(3333), Ratio(1, 3))
}

func TestRatioAmount(t *testing.T) {
	assert.Equal(t, int64(0), RatioAmount(decimal.NewFromInt(7), decimal.Zero))
	assert.Equal(t, int64(-1100), RatioAmount(decimal.NewFromInt(-110), decimal.NewFromInt(1000)))
	assert.Equal(t, int64(-3333), RatioAmount(decimal.NewFromInt(-1), decimal.NewFromInt(3)))
}

func TestApplyAndQuo(t *testing.T) {
	assert.True(t, Apply(decimal.NewFromInt(199), 100).Equal(decimal.NewFromInt(1)))
	assert.True(t, Apply(decimal.NewFromInt(99), 100).IsZero())
	assert.True(t, MulDiv(decimal.NewFromInt(100), 20000, 9500).Equal(decimal.NewFromInt(210)))
	assert.True(t, Quo(decimal.NewFromInt(10), 0).IsZero())
	assert.True(t, Quo(decimal.NewFromInt(10), 3).Equal(decimal.NewFromInt(3)))
}

// TestApplyProperty verifies Apply never exceeds the exact fraction.
// *For any* non-negative amount and bp in [0, Scale], Apply(amount, bp) is an
// integer with Apply*Scale <= amount*bp < (Apply+1)*Scale.
func TestApplyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		amount := decimal.NewFromInt(rapid.Int64Range(0, 1<<50).Draw(t, "amount"))
		bp := rapid.Int64Range(0, Scale).Draw(t, "bp")

		got := Apply(amount, bp)
		exact := amount.Mul(decimal.NewFromInt(bp))
		lo := got.Mul(scaleDecimal)
		hi := got.Add(decimal.NewFromInt(1)).Mul(scaleDecimal)

		if !got.IsInteger() || lo.GreaterThan(exact) || !hi.GreaterThan(exact) {
			t.Fatalf("Apply(%s, %d) = %s", amount, bp, got)
		}
	})
}
