package workers

import (
	"context"
	"time"

	"github.com/selivandex/market-insights/internal/analytics"
	"github.com/selivandex/market-insights/pkg/models"
)

// RealtimeStore persists the rolling gauge
type RealtimeStore interface {
	SaveRealtime(ctx context.Context, record models.RealtimeSentimentRecord) error
}

// RealtimeWorker keeps the rolling sentiment gauge current even when
// no ingestion runs are landing new articles: old articles must age
// out of the window on schedule.
type RealtimeWorker struct {
	aggregator *analytics.RealtimeAggregator
	store      RealtimeStore
}

// NewRealtimeWorker creates new rolling gauge worker
func NewRealtimeWorker(aggregator *analytics.RealtimeAggregator, store RealtimeStore) *RealtimeWorker {
	return &RealtimeWorker{
		aggregator: aggregator,
		store:      store,
	}
}

// Name returns worker name
func (w *RealtimeWorker) Name() string {
	return "realtime_sentiment"
}

// Run recomputes and persists the rolling gauge
// Called periodically by pkg/worker.PeriodicWorker
func (w *RealtimeWorker) Run(ctx context.Context) error {
	record, err := w.aggregator.Rolling(ctx, time.Now())
	if err != nil {
		return err
	}
	return w.store.SaveRealtime(ctx, record)
}
