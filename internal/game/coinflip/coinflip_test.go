package coinflip

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"coinflip-settlement/internal/game"
	"coinflip-settlement/internal/model"
)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// TestSettle covers the documented win and loss scenarios.
func TestSettle(t *testing.T) {
	tests := []struct {
		name       string
		bet        int64
		chosen     model.Side
		actual     model.Side
		edge       int64
		wantWon    bool
		wantPayout int64
		wantNet    int64
	}{
		{"win at 5% edge floors the payout", 100, model.SideHeads, model.SideHeads, 500, true, 210, 110},
		{"win at zero edge pays exactly 2x", 100, model.SideTails, model.SideTails, 0, true, 200, 100},
		{"loss pays nothing", 100, model.SideHeads, model.SideTails, 500, false, 0, -100},
		{"loss at zero edge", 250, model.SideTails, model.SideHeads, 0, false, 0, -250},
		{"win at 99.99% edge", 1, model.SideHeads, model.SideHeads, 9999, true, 20000, 19999},
		{"zero bet win", 0, model.SideHeads, model.SideHeads, 500, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Settle(amt(tt.bet), tt.chosen, tt.actual, tt.edge)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWon, out.PlayerWon)
			assert.True(t, out.Payout.Equal(amt(tt.wantPayout)), "payout = %s", out.Payout)
			assert.True(t, out.NetResult.Equal(amt(tt.wantNet)), "net = %s", out.NetResult)
		})
	}
}

func TestSettle_InvalidHouseEdge(t *testing.T) {
	for _, edge := range []int64{10000, 10001, 65535, -1} {
		_, err := Settle(amt(100), model.SideHeads, model.SideHeads, edge)
		assert.ErrorIs(t, err, ErrInvalidHouseEdge, "edge %d", edge)
	}
}

func TestSettle_InvalidInputs(t *testing.T) {
	_, err := Settle(amt(-1), model.SideHeads, model.SideHeads, 500)
	assert.ErrorIs(t, err, ErrInvalidBet)

	_, err = Settle(amt(1), model.Side(7), model.SideHeads, 500)
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestExpectedPayoutMultiplierBP(t *testing.T) {
	m, err := ExpectedPayoutMultiplierBP(0)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), m)

	m, err = ExpectedPayoutMultiplierBP(500)
	require.NoError(t, err)
	assert.Equal(t, int64(21052), m)

	_, err = ExpectedPayoutMultiplierBP(10000)
	assert.ErrorIs(t, err, ErrInvalidHouseEdge)
}

func TestSideFromRandom(t *testing.T) {
	tests := []struct {
		value   string
		want    model.Side
		wantErr bool
	}{
		{"0", model.SideHeads, false},
		{"1", model.SideTails, false},
		{"42", model.SideHeads, false},
		{"0x0b", model.SideTails, false},
		{"0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFE", model.SideHeads, false},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", model.SideTails, false},
		{"", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			side, err := SideFromRandom(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRandomValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, side)
		})
	}
}

func TestCoinFlip_Interface(t *testing.T) {
	var g game.Game = New()

	assert.Equal(t, "coin_flip", g.Type())
	assert.Equal(t, "Coin Flip", g.Name())
	assert.NotEmpty(t, g.Description())

	side, err := g.ResolveSide("7")
	require.NoError(t, err)
	assert.Equal(t, model.SideTails, side)
}

// TestWinningPayoutProperty tests the payout bounds of a winning bet.
// *For any* bet > 0 and edge in [0, 9999]: payout >= 2*bet, and payout == 2*bet
// when edge == 0. Floor rounding can also give exactly 2*bet for small bets
// at small edges (bet 1 at edge 1), so the converse does not hold.
func TestWinningPayoutProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bet := amt(rapid.Int64Range(1, 1_000_000_000_000).Draw(t, "bet"))
		edge := rapid.Int64Range(0, 9999).Draw(t, "edge")

		out, err := Settle(bet, model.SideHeads, model.SideHeads, edge)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		double := bet.Mul(amt(2))
		if out.Payout.LessThan(double) {
			t.Fatalf("payout %s below double bet %s at edge %d", out.Payout, double, edge)
		}
		if edge == 0 && !out.Payout.Equal(double) {
			t.Fatalf("payout %s for bet %s at edge 0, want %s", out.Payout, bet, double)
		}
		if !out.NetResult.Equal(out.Payout.Sub(bet)) {
			t.Fatalf("net %s != payout %s - bet %s", out.NetResult, out.Payout, bet)
		}
	})
}

func TestSettle_SmallBetRoundsToDouble(t *testing.T) {
	out, err := Settle(amt(1), model.SideHeads, model.SideHeads, 1)
	require.NoError(t, err)
	assert.True(t, out.Payout.Equal(amt(2)))
	assert.True(t, out.NetResult.Equal(amt(1)))
}

// TestPayoutFavoursHouseProperty tests that rounding never overpays.
// *For any* winning bet, payout * (10000 - edge) <= bet * 20000.
func TestPayoutFavoursHouseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bet := amt(rapid.Int64Range(0, 1_000_000_000).Draw(t, "bet"))
		edge := rapid.Int64Range(0, 9999).Draw(t, "edge")

		payout := CalculatePayout(bet, edge)
		lhs := payout.Mul(amt(10000 - edge))
		rhs := bet.Mul(amt(20000))
		if lhs.GreaterThan(rhs) {
			t.Fatalf("payout %s overpays bet %s at edge %d", payout, bet, edge)
		}
		if rhs.Sub(lhs).GreaterThanOrEqual(amt(10000 - edge)) {
			t.Fatalf("payout %s is not the floor for bet %s at edge %d", payout, bet, edge)
		}
	})
}

// TestInvalidHouseEdgeProperty tests that any edge >= 10000 is rejected.
func TestInvalidHouseEdgeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		edge := rapid.Int64Range(10000, 1<<40).Draw(t, "edge")
		won := rapid.Bool().Draw(t, "won")
		actual := model.SideHeads
		if !won {
			actual = model.SideTails
		}

		if _, err := Settle(amt(100), model.SideHeads, actual, edge); err == nil {
			t.Fatalf("edge %d should be rejected", edge)
		}
	})
}

// TestLossNetResultProperty tests that a loss always costs exactly the bet.
func TestLossNetResultProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bet := amt(rapid.Int64Range(0, 1_000_000_000).Draw(t, "bet"))
		edge := rapid.Int64Range(0, 9999).Draw(t, "edge")

		out, err := Settle(bet, model.SideTails, model.SideHeads, edge)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.PlayerWon || !out.Payout.IsZero() || !out.NetResult.Equal(bet.Neg()) {
			t.Fatalf("loss of %s produced %+v", bet, out)
		}
	})
}
