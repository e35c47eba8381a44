package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// RealtimeAggregator computes the rolling sentiment gauge over a fixed
// trailing window. It carries no state between calls; every invocation
// recomputes from the store, which stays cheap because the window is
// short.
type RealtimeAggregator struct {
	store    ArticleLister
	window   time.Duration
	pageSize int
}

// NewRealtimeAggregator creates a rolling aggregator
func NewRealtimeAggregator(store ArticleLister, window time.Duration, pageSize int) *RealtimeAggregator {
	return &RealtimeAggregator{
		store:    store,
		window:   window,
		pageSize: pageSize,
	}
}

// Rolling computes the trailing-window average ending at now. Zero
// articles in the window is not an error: the gauge defaults to
// neutral. A store error aborts and returns a zero record with the
// error, never a partial average.
func (a *RealtimeAggregator) Rolling(ctx context.Context, now time.Time) (models.RealtimeSentimentRecord, error) {
	end := now.UTC()
	start := end.Add(-a.window)
	label := windowLabel(a.window)

	sum := 0
	count := 0
	var cursor *articles.PageCursor

	for {
		page, err := a.store.ListPage(ctx, start, end, cursor, a.pageSize)
		if err != nil {
			logger.Error("rolling sentiment aggregation aborted",
				zap.String("window", label),
				zap.Error(err),
			)
			return models.RealtimeSentimentRecord{
				TimeWindow:  label,
				LastUpdated: time.Now().UTC(),
			}, fmt.Errorf("rolling aggregation failed: %w", err)
		}

		if len(page) == 0 {
			break
		}

		for i := range page {
			sum += models.SentimentScore(page[i].Sentiment)
		}
		count += len(page)

		last := page[len(page)-1]
		cursor = &articles.PageCursor{PublishedAt: last.PublishedAt, ID: last.ID}

		if len(page) < a.pageSize {
			break
		}
	}

	record := models.RealtimeSentimentRecord{
		TimeWindow:  label,
		LastUpdated: time.Now().UTC(),
	}

	if count == 0 {
		logger.Warn("no articles in rolling window, defaulting to neutral",
			zap.String("window", label),
		)
		return record, nil
	}

	record.AverageScore = round3(float64(sum) / float64(count))
	record.ArticlesAnalyzed = count

	logger.Info("rolling sentiment calculated",
		zap.Float64("average_score", record.AverageScore),
		zap.Int("articles", count),
		zap.String("window", label),
	)
	return record, nil
}

func windowLabel(window time.Duration) string {
	hours := int(window.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
