// Package main is the entry point for the coin flip settlement service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"coinflip-settlement/internal/api"
	"coinflip-settlement/internal/config"
	"coinflip-settlement/internal/game"
	"coinflip-settlement/internal/game/coinflip"
	"coinflip-settlement/internal/pkg/db"
	"coinflip-settlement/internal/pkg/lock"
	"coinflip-settlement/internal/pkg/metrics"
	"coinflip-settlement/internal/repository"
	"coinflip-settlement/internal/service"
	"coinflip-settlement/internal/settlement"
	"coinflip-settlement/internal/stream"
)

const expiryBatchSize = 100

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	settings, err := cfg.SettlementSettings()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid settlement settings")
	}

	log.Info().
		Int64("house_edge_bp", settings.DefaultHouseEdgeBP).
		Uint64("expiry_blocks", settings.GameExpiryBlocks).
		Bool("paused", settings.Paused).
		Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run database migrations
	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	store := repository.NewStore(dbPool.Pool)

	// Initialize game registry and settlement engine
	gameRegistry := game.NewRegistry()
	if err := gameRegistry.Register(coinflip.New()); err != nil {
		log.Fatal().Err(err).Msg("Failed to register coin flip game")
	}
	engine, err := settlement.NewEngine(gameRegistry, settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create settlement engine")
	}

	log.Info().
		Int("game_count", gameRegistry.Count()).
		Strs("games", gameRegistry.Types()).
		Msg("Games registered")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}

	metrics.Init()

	// Initialize services
	playerLock := lock.NewKeyedLock()
	publisher := stream.NewPublisher(rdb, cfg.Redis.SettledStream)

	settlementService := service.NewSettlementService(store, engine, playerLock, publisher, cfg.Game.LockTimeout)
	accountService := service.NewAccountService(store, playerLock, cfg.Game.LockTimeout)
	discountService := service.NewDiscountService(store, engine, playerLock, cfg.Game.LockTimeout)
	rankingService := service.NewRankingService(store.Leaderboard, cfg.Game.LeaderboardRefreshPeriod)
	analyticsService := service.NewAnalyticsService(store.Analytics)

	var wg sync.WaitGroup

	// Start fulfillment consumer
	consumer := stream.NewConsumer(
		rdb,
		cfg.Redis.FulfilledStream,
		cfg.Redis.ConsumerGroup,
		consumerID(),
		cfg.Redis.BatchSize,
		cfg.Redis.BlockTimeout,
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("stream", cfg.Redis.FulfilledStream).Msg("Fulfillment consumer is starting...")
		if err := consumer.Run(ctx, settlementService.HandleFulfillment); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Fulfillment consumer stopped")
			cancel()
		}
	}()

	// Start expiry sweep
	wg.Add(1)
	go func() {
		defer wg.Done()
		runSweeper(ctx, cfg.Game.ExpirySweepInterval, settlementService, discountService)
	}()

	// Start HTTP server
	router := api.NewRouter(
		api.NewHandler(store, rankingService, accountService, analyticsService),
		api.NewBetHandler(settlementService),
		api.NewWalletHandler(accountService, discountService),
		cfg.Server.CORSOrigins,
	)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Warn().Msg("Shutting down after component failure")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	wg.Wait()
	log.Info().Msg("Settler stopped gracefully")
}

// runSweeper refunds stale games and prunes spent modifiers until ctx ends.
// Game age is measured against the newest block the service has observed.
func runSweeper(ctx context.Context, interval time.Duration, settlements *service.SettlementService, discounts *service.DiscountService) {
	if interval <= 0 {
		log.Info().Msg("Expiry sweep disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		block := settlements.LatestBlock()
		if block > 0 {
			if _, err := settlements.ExpireStale(ctx, block, expiryBatchSize); err != nil {
				log.Error().Err(err).Uint64("block", block).Msg("Expiry sweep failed")
			}
		}

		if _, err := discounts.PruneExpired(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to prune expired modifiers")
		}
	}
}

func consumerID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "settler-" + uuid.NewString()[:8]
}
