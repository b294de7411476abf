package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinflip-settlement/internal/settlement"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "randomness.fulfilled", cfg.Redis.FulfilledStream)
	assert.Equal(t, "games.settled", cfg.Redis.SettledStream)
	assert.Equal(t, int64(500), cfg.Game.DefaultHouseEdgeBP)
	assert.Equal(t, 5*time.Second, cfg.Game.LockTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	s, err := cfg.SettlementSettings()
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.RewardRateBP)
	assert.Equal(t, int64(86400), s.Discount.MaxDurationSeconds)
	assert.True(t, s.MinBet.Equal(decimal.RequireFromString("1000000000000000000")))
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  host: db.internal
  port: 6543
game:
  default_house_edge_bp: 300
  max_house_edge_reduction_bp: 200
  min_bet: "10"
  max_bet: "1000"
global:
  paused: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("GAME_MAX_BET", "5000")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "postgres://coinflip:@db.internal:6543/coinflip?sslmode=disable", cfg.Database.DSN())

	s, err := cfg.SettlementSettings()
	require.NoError(t, err)
	assert.Equal(t, int64(300), s.DefaultHouseEdgeBP)
	assert.True(t, s.MinBet.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.MaxBet.Equal(decimal.NewFromInt(5000)))
	assert.True(t, s.Paused)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"edge at 100%", func(c *Config) { c.Game.DefaultHouseEdgeBP = 10000 }},
		{"negative edge", func(c *Config) { c.Game.DefaultHouseEdgeBP = -1 }},
		{"min above max", func(c *Config) { c.Game.MinBet = "10"; c.Game.MaxBet = "9" }},
		{"non-numeric bet", func(c *Config) { c.Game.MinBet = "one" }},
		{"fractional cost", func(c *Config) { c.Global.BasisPointCost = "0.5" }},
		{"reduction above default edge", func(c *Config) { c.Game.MaxHouseEdgeReductionBP = 600 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := base()
	cfg.Game.MaxHouseEdgeReductionBP = 600
	_, err := cfg.SettlementSettings()
	assert.ErrorIs(t, err, settlement.ErrInvalidSettings)
}
