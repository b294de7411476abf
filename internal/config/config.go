// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"coinflip-settlement/internal/modifier"
	"coinflip-settlement/internal/pkg/bps"
	"coinflip-settlement/internal/settlement"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Global   GlobalConfig   `mapstructure:"global"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the Redis connection and stream names.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	FulfilledStream string        `mapstructure:"fulfilled_stream"`
	SettledStream   string        `mapstructure:"settled_stream"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
	BlockTimeout    time.Duration `mapstructure:"block_timeout"`
	BatchSize       int64         `mapstructure:"batch_size"`
}

// ServerConfig holds the HTTP query server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// GameConfig holds coin flip settings. Amounts are decimal strings so that
// values beyond 64 bits survive YAML and environment parsing.
type GameConfig struct {
	DefaultHouseEdgeBP       int64         `mapstructure:"default_house_edge_bp"`
	MinBet                   string        `mapstructure:"min_bet"`
	MaxBet                   string        `mapstructure:"max_bet"`
	RewardRateBP             int64         `mapstructure:"reward_rate_bp"`
	MaxHouseEdgeReductionBP  int64         `mapstructure:"max_house_edge_reduction_bp"`
	GameExpiryBlocks         uint64        `mapstructure:"game_expiry_blocks"`
	LockTimeout              time.Duration `mapstructure:"lock_timeout"`
	ExpirySweepInterval      time.Duration `mapstructure:"expiry_sweep_interval"`
	LeaderboardRefreshPeriod time.Duration `mapstructure:"leaderboard_refresh_period"`
}

// GlobalConfig holds platform-wide settings.
type GlobalConfig struct {
	BasisPointCost      string        `mapstructure:"basis_point_cost"`
	MinRewardPurchase   string        `mapstructure:"min_reward_purchase"`
	MaxModifierDuration time.Duration `mapstructure:"max_modifier_duration"`
	Paused              bool          `mapstructure:"paused"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, GAME_MIN_BET, GLOBAL_PAUSED
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "coinflip")
	v.SetDefault("database.name", "coinflip")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.fulfilled_stream", "randomness.fulfilled")
	v.SetDefault("redis.settled_stream", "games.settled")
	v.SetDefault("redis.consumer_group", "settler")
	v.SetDefault("redis.block_timeout", "5s")
	v.SetDefault("redis.batch_size", 16)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Game defaults (amounts in the wager currency's smallest unit)
	v.SetDefault("game.default_house_edge_bp", 500)
	v.SetDefault("game.min_bet", "1000000000000000000")
	v.SetDefault("game.max_bet", "1000000000000000000000")
	v.SetDefault("game.reward_rate_bp", 100)
	v.SetDefault("game.max_house_edge_reduction_bp", 400)
	v.SetDefault("game.game_expiry_blocks", 100)
	v.SetDefault("game.lock_timeout", "5s")
	v.SetDefault("game.expiry_sweep_interval", "30s")
	v.SetDefault("game.leaderboard_refresh_period", "1m")

	// Global defaults
	v.SetDefault("global.basis_point_cost", "1000000000000000000")
	v.SetDefault("global.min_reward_purchase", "10000000000000000000")
	v.SetDefault("global.max_modifier_duration", "24h")
	v.SetDefault("global.paused", false)
}

// Validate rejects configurations the settlement pipeline cannot run with.
func (c *Config) Validate() error {
	_, err := c.SettlementSettings()
	return err
}

// SettlementSettings converts the game and global sections into the values
// the settlement engine enforces.
func (c *Config) SettlementSettings() (settlement.Settings, error) {
	if c.Game.DefaultHouseEdgeBP < 0 || c.Game.DefaultHouseEdgeBP >= bps.Scale {
		return settlement.Settings{}, fmt.Errorf("game.default_house_edge_bp must be in [0, %d), got %d",
			bps.Scale, c.Game.DefaultHouseEdgeBP)
	}

	amounts := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"game.min_bet", c.Game.MinBet, new(decimal.Decimal)},
		{"game.max_bet", c.Game.MaxBet, new(decimal.Decimal)},
		{"global.basis_point_cost", c.Global.BasisPointCost, new(decimal.Decimal)},
		{"global.min_reward_purchase", c.Global.MinRewardPurchase, new(decimal.Decimal)},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.raw)
		if err != nil {
			return settlement.Settings{}, fmt.Errorf("invalid %s %q: %w", a.key, a.raw, err)
		}
		if !d.IsInteger() || d.IsNegative() {
			return settlement.Settings{}, fmt.Errorf("%s must be a non-negative integer, got %s", a.key, a.raw)
		}
		*a.dst = d
	}

	s := settlement.Settings{
		DefaultHouseEdgeBP: c.Game.DefaultHouseEdgeBP,
		MinBet:             *amounts[0].dst,
		MaxBet:             *amounts[1].dst,
		RewardRateBP:       c.Game.RewardRateBP,
		GameExpiryBlocks:   c.Game.GameExpiryBlocks,
		Paused:             c.Global.Paused,
		Discount: modifier.Limits{
			MaxReductionBP:     c.Game.MaxHouseEdgeReductionBP,
			MaxDurationSeconds: int64(c.Global.MaxModifierDuration / time.Second),
		},
		BasisPointCost:    *amounts[2].dst,
		MinRewardPurchase: *amounts[3].dst,
	}
	if err := s.Validate(); err != nil {
		return settlement.Settings{}, err
	}
	return s, nil
}
