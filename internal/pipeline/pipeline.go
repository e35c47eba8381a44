package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/ai"
	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// ArticleStore is the write surface the pipeline needs from the
// article repository.
type ArticleStore interface {
	articles.RecentURLLoader
	SaveBatch(ctx context.Context, items []models.Article) (int, error)
}

// GaugeRefresher recomputes the rolling sentiment gauge after new
// articles land.
type GaugeRefresher interface {
	Rolling(ctx context.Context, now time.Time) (models.RealtimeSentimentRecord, error)
}

// GaugeStore persists the recomputed gauge value.
type GaugeStore interface {
	SaveRealtime(ctx context.Context, record models.RealtimeSentimentRecord) error
}

// Pipeline is one ingestion pass: fetch candidates, validate leniently,
// deduplicate against the trailing window, persist, then refresh the
// rolling gauge so reads reflect the new articles immediately.
type Pipeline struct {
	provider    ai.Provider
	store       ArticleStore
	gauge       GaugeRefresher
	gaugeStore  GaugeStore
	dedupWindow time.Duration
	maxBatch    int
}

// New creates an ingestion pipeline
func New(provider ai.Provider, store ArticleStore, gauge GaugeRefresher, gaugeStore GaugeStore, dedupWindow time.Duration, maxBatch int) *Pipeline {
	return &Pipeline{
		provider:    provider,
		store:       store,
		gauge:       gauge,
		gaugeStore:  gaugeStore,
		dedupWindow: dedupWindow,
		maxBatch:    maxBatch,
	}
}

// Run executes one ingestion pass and reports its stats. A malformed
// provider payload completes the run with zero admitted records; a
// transport failure that survives retries fails the run.
func (p *Pipeline) Run(ctx context.Context) (models.RunStats, error) {
	started := time.Now()
	stats := models.RunStats{}

	logger.Info("starting ingestion run",
		zap.String("provider", p.provider.Name()),
	)

	dedup := articles.LoadDedupSet(ctx, p.store, p.dedupWindow)

	candidates, err := p.provider.FetchArticles(ctx)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedPayload) {
			// Whole batch discarded, but the run itself is healthy
			logger.Warn("provider returned malformed payload, run completes with zero admitted")
			stats.ExecutionTimeSeconds = time.Since(started).Seconds()
			return stats, nil
		}
		stats.ExecutionTimeSeconds = time.Since(started).Seconds()
		return stats, fmt.Errorf("candidate fetch failed: %w", err)
	}

	stats.Fetched = len(candidates)
	if len(candidates) > p.maxBatch {
		logger.Warn("truncating oversized candidate batch",
			zap.Int("fetched", len(candidates)),
			zap.Int("max_batch", p.maxBatch),
		)
		candidates = candidates[:p.maxBatch]
	}

	valid, itemErrors := articles.ValidateBatch(candidates)
	stats.Invalid = len(itemErrors)
	for _, ie := range itemErrors {
		logger.Warn("rejected invalid candidate",
			zap.Int("index", ie.Index),
			zap.String("headline", ie.Headline),
			zap.Int("violations", len(ie.Violations)),
		)
	}

	fresh := make([]models.Article, 0, len(valid))
	for _, article := range valid {
		if dedup.Contains(article.URL) {
			stats.Duplicates++
			continue
		}
		dedup.Admit(article.URL)
		fresh = append(fresh, article)
	}
	stats.NewArticles = len(fresh)

	saved, err := p.store.SaveBatch(ctx, fresh)
	if err != nil {
		stats.ExecutionTimeSeconds = time.Since(started).Seconds()
		return stats, fmt.Errorf("failed to persist admitted articles: %w", err)
	}
	stats.Saved = saved

	// Refresh the gauge so the current-sentiment read surface picks up
	// this run's articles without waiting for the periodic recompute.
	record, err := p.gauge.Rolling(ctx, time.Now())
	if err != nil {
		logger.Error("gauge refresh failed after ingestion", zap.Error(err))
	} else if err := p.gaugeStore.SaveRealtime(ctx, record); err != nil {
		logger.Error("failed to persist refreshed gauge", zap.Error(err))
	} else {
		stats.SentimentCalculated = true
	}

	stats.ExecutionTimeSeconds = time.Since(started).Seconds()
	logger.Info("ingestion run complete",
		zap.Int("fetched", stats.Fetched),
		zap.Int("invalid", stats.Invalid),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("new_articles", stats.NewArticles),
		zap.Int("saved", stats.Saved),
		zap.Float64("execution_seconds", stats.ExecutionTimeSeconds),
	)
	return stats, nil
}
