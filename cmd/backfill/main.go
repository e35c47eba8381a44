package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/internal/adapters/database"
	"github.com/selivandex/market-insights/internal/analytics"
	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/pkg/logger"
)

// Backfill recomputes daily analytics records for a date range. Safe to
// re-run: each day is an idempotent upsert keyed by date.
func main() {
	var (
		fromFlag = flag.String("from", "", "first date to aggregate (YYYY-MM-DD), defaults to yesterday")
		toFlag   = flag.String("to", "", "last date to aggregate (YYYY-MM-DD), defaults to -from")
	)
	flag.Parse()

	if err := run(*fromFlag, *toFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(fromRaw, toRaw string) error {
	from, to, err := parseRange(fromRaw, toRaw)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, "console"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	articleRepo := articles.NewRepository(db.DB())
	analyticsRepo := analytics.NewRepository(db.DB())
	aggregator := analytics.NewDailyAggregator(articleRepo, cfg.Analytics.PageSize)

	ctx := context.Background()
	failed := 0

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		record, err := aggregator.Aggregate(ctx, day)
		if err != nil {
			logger.Error("aggregation failed",
				zap.String("date", day.Format("2006-01-02")),
				zap.Error(err),
			)
			failed++
			continue
		}
		if err := analyticsRepo.SaveDaily(ctx, record); err != nil {
			logger.Error("failed to save record",
				zap.String("date", record.Date),
				zap.Error(err),
			)
			failed++
			continue
		}
		logger.Info("day backfilled",
			zap.String("date", record.Date),
			zap.Float64("overall_score", record.OverallSentimentScore),
			zap.Int("articles", record.ArticlesAnalyzed),
		)
	}

	if failed > 0 {
		return fmt.Errorf("%d day(s) failed to backfill", failed)
	}
	return nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)

	from := yesterday
	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -from date %q: %w", fromRaw, err)
		}
		from = parsed
	}

	to := from
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to date %q: %w", toRaw, err)
		}
		to = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to %s is before -from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return from, to, nil
}
