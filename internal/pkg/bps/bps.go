// Package bps holds the basis-point scale shared by every component that
// reasons in basis points, plus the integer arithmetic built on it.
package bps

import "github.com/shopspring/decimal"

// Scale is 100% expressed in basis points.
const Scale int64 = 10000

var scaleDecimal = decimal.NewFromInt(Scale)

// Ratio returns floor(part * Scale / whole) for counters, or 0 when whole is 0.
func Ratio(part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	return part * Scale / whole
}

// RatioAmount returns part * Scale / whole truncated toward zero, or 0 when
// whole is 0. part may be signed.
func RatioAmount(part, whole decimal.Decimal) int64 {
	if whole.IsZero() {
		return 0
	}
	q, _ := part.Mul(scaleDecimal).QuoRem(whole, 0)
	return q.IntPart()
}

// Apply returns floor(amount * bp / Scale) for a non-negative amount.
func Apply(amount decimal.Decimal, bp int64) decimal.Decimal {
	return MulDiv(amount, bp, Scale)
}

// MulDiv returns amount * num / den using exact integer division.
// den must be non-zero.
func MulDiv(amount decimal.Decimal, num, den int64) decimal.Decimal {
	q, _ := amount.Mul(decimal.NewFromInt(num)).QuoRem(decimal.NewFromInt(den), 0)
	return q
}

// Quo returns amount / n truncated to an integer, or 0 when n is 0.
func Quo(amount decimal.Decimal, n int64) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	q, _ := amount.QuoRem(decimal.NewFromInt(n), 0)
	return q
}
