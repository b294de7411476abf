// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a migrated PostgreSQL container and returns a Store.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*Store, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return NewStore(pool), cleanup
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// ============================================================================
// BalanceRepository Tests
// ============================================================================

func TestBalanceRepository_GetMissing(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.Balances.Get(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBalanceRepository_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	b, err := store.Balances.GetForUpdate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, b.SpendableWager.IsZero())

	b.SpendableWager = amt(900)
	b.LockedWager = amt(100)
	b.SpendableReward = amt(7)
	require.NoError(t, store.Balances.Save(ctx, b))

	got, err := store.Balances.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.SpendableWager.Equal(amt(900)))
	assert.True(t, got.LockedWager.Equal(amt(100)))
	assert.True(t, got.SpendableReward.Equal(amt(7)))
}

func TestBalanceRepository_RejectsNegative(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.Balances.Save(context.Background(), &model.PlayerBalance{
		Player:          "alice",
		SpendableWager:  amt(-1),
		SpendableReward: decimal.Zero,
		LockedWager:     decimal.Zero,
	})
	assert.Error(t, err)
}

func TestBalanceRepository_LargeAmounts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	huge, err := decimal.NewFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)

	require.NoError(t, store.Balances.Save(ctx, &model.PlayerBalance{
		Player:          "whale",
		SpendableWager:  huge,
		SpendableReward: decimal.Zero,
		LockedWager:     decimal.Zero,
	}))

	got, err := store.Balances.Get(ctx, "whale")
	require.NoError(t, err)
	assert.True(t, got.SpendableWager.Equal(huge))
}

// ============================================================================
// WithTx Tests
// ============================================================================

func TestStore_WithTxRollsBack(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(r *Repositories) error {
		b, err := r.Balances.GetForUpdate(ctx, "alice")
		if err != nil {
			return err
		}
		b.SpendableWager = amt(500)
		if err := r.Balances.Save(ctx, b); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Balances.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WithTxCommits(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := store.WithTx(ctx, func(r *Repositories) error {
		b, err := r.Balances.GetForUpdate(ctx, "alice")
		if err != nil {
			return err
		}
		b.SpendableWager = amt(500)
		if err := r.Balances.Save(ctx, b); err != nil {
			return err
		}
		_, err = r.Ledger.Append(ctx, "alice", model.LedgerDeposit, amt(500), "")
		return err
	})
	require.NoError(t, err)

	got, err := store.Balances.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.SpendableWager.Equal(amt(500)))

	entries, err := store.Ledger.ListByPlayer(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].GameID)
}

// ============================================================================
// StatsRepository Tests
// ============================================================================

func TestStatsRepository_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	s, err := store.Stats.GetForUpdate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.TotalGames)

	s.TotalGames, s.GamesWon, s.GamesLost = 3, 2, 1
	s.TotalBet = amt(300)
	s.CurrentStreak, s.BestStreak = 2, 2
	require.NoError(t, store.Stats.Save(ctx, s))

	got, err := store.Stats.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalGames)
	assert.Equal(t, int64(2), got.BestStreak)
	assert.True(t, got.TotalBet.Equal(amt(300)))
}

func TestStatsRepository_RejectsInconsistentCounts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	s, err := store.Stats.GetForUpdate(ctx, "alice")
	require.NoError(t, err)
	s.TotalGames = 2
	s.GamesWon = 1
	assert.Error(t, store.Stats.Save(ctx, s))
}

// ============================================================================
// ModifierRepository Tests
// ============================================================================

func TestModifierRepository_ReplaceAndExpire(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	m, err := store.Modifiers.GetForUpdate(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, store.Modifiers.Save(ctx, &model.HouseEdgeModifier{
		Player: "alice", RemainingUses: 3, ReductionBP: 100, ExpiryTimestamp: 1000,
	}))
	require.NoError(t, store.Modifiers.Save(ctx, &model.HouseEdgeModifier{
		Player: "alice", RemainingUses: 1, ReductionBP: 200, ExpiryTimestamp: 5000,
	}))

	got, err := store.Modifiers.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RemainingUses)
	assert.Equal(t, int64(200), got.ReductionBP)

	n, err := store.Modifiers.DeleteExpired(ctx, 6000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Modifiers.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// GameRepository Tests
// ============================================================================

func TestGameRepository_PendingLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := &model.PendingGame{
		ID:              "g1",
		RandomOutcomeID: "r1",
		Player:          "alice",
		GameType:        "coinflip",
		BetAmount:       amt(100),
		ChosenSide:      model.SideTails,
		PlacedAt:        1000,
		PlacedBlock:     10,
		Status:          model.GameStatusPending,
	}
	require.NoError(t, store.Games.CreatePending(ctx, p))

	dup := *p
	dup.ID = "g2"
	assert.ErrorIs(t, store.Games.CreatePending(ctx, &dup), ErrDuplicate, "outcome ids are unique")

	got, err := store.Games.GetPendingByOutcomeForUpdate(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.SideTails, got.ChosenSide)
	assert.Equal(t, uint64(10), got.PlacedBlock)

	stale, err := store.Games.ListStale(ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = store.Games.ListStale(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, store.Games.SetStatus(ctx, "g1", model.GameStatusExpired))
	stale, err = store.Games.ListStale(ctx, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	assert.ErrorIs(t, store.Games.SetStatus(ctx, "missing", model.GameStatusSettled), ErrNotFound)
}

func TestGameRepository_Settled(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	g := &model.SettledGame{
		ID:              "g1",
		Player:          "alice",
		GameType:        "coinflip",
		ChosenSide:      model.SideHeads,
		ActualSide:      model.SideHeads,
		BetAmount:       amt(100),
		HouseEdgeBP:     500,
		PayoutAmount:    amt(210),
		PlayerWon:       true,
		DiscountApplied: false,
		RewardEarned:    amt(1),
		PlacedAt:        1000,
		Timestamp:       1010,
		BlockNumber:     12,
		RandomOutcomeID: "r1",
	}
	require.NoError(t, store.Games.InsertSettled(ctx, g))

	got, err := store.Games.GetSettled(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, got.PayoutAmount.Equal(amt(210)))
	assert.True(t, got.NetResult().Equal(amt(110)))

	list, err := store.Games.ListSettledByPlayer(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ============================================================================
// AnalyticsRepository Tests
// ============================================================================

func TestAnalyticsRepository_DailyPlayersAndSignedProfit(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.Analytics.MarkDailyPlayer(ctx, 86400, "alice")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.Analytics.MarkDailyPlayer(ctx, 86400, "alice")
	require.NoError(t, err)
	assert.False(t, again)

	d, err := store.Analytics.DailyForUpdate(ctx, 86400)
	require.NoError(t, err)
	d.TotalGames = 1
	d.HouseProfit = amt(-110)
	require.NoError(t, store.Analytics.SaveDaily(ctx, d))

	got, err := store.Analytics.GetDaily(ctx, 86400)
	require.NoError(t, err)
	assert.True(t, got.HouseProfit.Equal(amt(-110)))

	_, err = store.Analytics.GetDaily(ctx, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyticsRepository_Buckets(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p, err := store.Analytics.PerformanceForUpdate(ctx, "coinflip", 0)
	require.NoError(t, err)
	p.TotalGames = 4
	p.PlayerWinRateBP = 5000
	require.NoError(t, store.Analytics.SavePerformance(ctx, p))

	perf, err := store.Analytics.ListPerformance(ctx, 0)
	require.NoError(t, err)
	require.Len(t, perf, 1)
	assert.Equal(t, int64(5000), perf[0].PlayerWinRateBP)

	h, err := store.Analytics.EdgeUsageForUpdate(ctx, 0)
	require.NoError(t, err)
	h.GamesWithDiscount = 1
	require.NoError(t, store.Analytics.SaveEdgeUsage(ctx, h))
	gotH, err := store.Analytics.GetEdgeUsage(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotH.GamesWithDiscount)

	r, err := store.Analytics.RandomnessForUpdate(ctx, 0)
	require.NoError(t, err)
	r.TotalRequests = 2
	require.NoError(t, store.Analytics.SaveRandomness(ctx, r))
	gotR, err := store.Analytics.GetRandomness(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gotR.TotalRequests)
}

// ============================================================================
// LeaderboardRepository Tests
// ============================================================================

func TestLeaderboardRepository_Snapshot(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, p := range []string{"alice", "bob"} {
		e, err := store.Leaderboard.GetForUpdate(ctx, p)
		require.NoError(t, err)
		e.TotalVolume = amt(100)
		e.NetProfit = amt(-100)
		e.LastUpdated = 42
		require.NoError(t, store.Leaderboard.Save(ctx, e))
	}

	entries, err := store.Leaderboard.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	got, err := store.Leaderboard.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, got.NetProfit.Equal(amt(-100)))
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_SumByPlayer(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.Ledger.Append(ctx, "alice", model.LedgerBetLocked, amt(-100), "g1")
	require.NoError(t, err)
	_, err = store.Ledger.Append(ctx, "alice", model.LedgerBetLocked, amt(-50), "g2")
	require.NoError(t, err)
	e, err := store.Ledger.Append(ctx, "alice", model.LedgerBetWon, amt(210), "g1")
	require.NoError(t, err)
	require.NotNil(t, e.GameID)
	assert.Equal(t, "g1", *e.GameID)

	sum, err := store.Ledger.SumByPlayer(ctx, "alice", model.LedgerBetLocked)
	require.NoError(t, err)
	assert.True(t, sum.Equal(amt(-150)))

	entries, err := store.Ledger.ListByPlayer(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.LedgerBetWon, entries[0].Type)
}
