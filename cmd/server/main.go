package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/ai"
	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/internal/adapters/database"
	marketAdapter "github.com/selivandex/market-insights/internal/adapters/market"
	"github.com/selivandex/market-insights/internal/adapters/metrics"
	redisAdapter "github.com/selivandex/market-insights/internal/adapters/redis"
	"github.com/selivandex/market-insights/internal/adapters/telegram"
	"github.com/selivandex/market-insights/internal/analytics"
	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/internal/cache"
	"github.com/selivandex/market-insights/internal/marketdata"
	"github.com/selivandex/market-insights/internal/pipeline"
	"github.com/selivandex/market-insights/internal/server"
	"github.com/selivandex/market-insights/internal/workers"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/worker"
)

const migrationsPath = "./migrations"

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Market Insights service starting...")

	// Core infrastructure
	db, redisClient, err := initInfrastructure(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer redisClient.Close()

	// Optional sinks: both are nil-safe no-ops when disabled
	notifier, err := telegram.New(&cfg.Telegram)
	if err != nil {
		logger.Warn("telegram notifier unavailable", zap.Error(err))
	}
	sink, err := metrics.NewSink(&cfg.Metrics)
	if err != nil {
		logger.Warn("run metrics sink unavailable, continuing without it", zap.Error(err))
		sink = nil
	}
	defer sink.Close()

	// Repositories
	articleRepo := articles.NewRepository(db.DB())
	analyticsRepo := analytics.NewRepository(db.DB())

	// Aggregators
	dailyAgg := analytics.NewDailyAggregator(articleRepo, cfg.Analytics.PageSize)
	realtimeAgg := analytics.NewRealtimeAggregator(articleRepo, cfg.Analytics.RollingWindow, cfg.Analytics.PageSize)

	// Ingestion pipeline
	provider := ai.NewGeminiProvider(&cfg.AI)
	ingestPipeline := pipeline.New(
		provider,
		articleRepo,
		realtimeAgg,
		analyticsRepo,
		cfg.Pipeline.DedupWindow,
		cfg.Pipeline.MaxBatch,
	)

	// Market data with stale-while-revalidate cache
	quoteClient := marketAdapter.NewClient(&cfg.Market)
	snapshotCache := cache.New(cache.NewRedisBackend(redisClient), cfg.Market.FetchTimeout)
	marketService := marketdata.NewService(quoteClient, snapshotCache, cfg.Market.CacheTTL)

	// Background workers
	ingestWorker := workers.NewIngestWorker(ingestPipeline, notifier, sink)
	realtimeWorker := workers.NewRealtimeWorker(realtimeAgg, analyticsRepo)
	dailyWorker := workers.NewDailyWorker(dailyAgg, analyticsRepo, redisClient, notifier, sink)

	group := worker.NewWorkerGroup(ctx)
	group.Add(ingestWorker, cfg.Pipeline.Interval)
	group.Add(realtimeWorker, cfg.Analytics.RealtimeInterval)
	group.Add(dailyWorker, cfg.Analytics.DailyInterval)
	group.Start()

	// HTTP API
	apiServer := server.NewServer(
		cfg.Server.Port,
		db,
		redisClient,
		marketService,
		analyticsRepo,
		provider,
		ingestPipeline,
		dailyWorker,
		realtimeWorker,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()
	apiServer.SetReady(true)

	logger.Info("Market Insights service started",
		zap.String("port", cfg.Server.Port),
		zap.Duration("ingest_interval", cfg.Pipeline.Interval),
		zap.Duration("rolling_window", cfg.Analytics.RollingWindow),
	)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("api server failed", zap.Error(err))
		}
	}

	// Graceful shutdown
	logger.Info("shutting down...")
	apiServer.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("api server shutdown failed", zap.Error(err))
	}
	group.Stop(30 * time.Second)

	logger.Info("shutdown complete")
	return nil
}

// initConfig loads configuration and initializes the logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initInfrastructure connects Postgres (with migrations) and Redis
func initInfrastructure(cfg *config.Config) (*database.DB, *redisAdapter.Client, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return db, redisClient, nil
}
