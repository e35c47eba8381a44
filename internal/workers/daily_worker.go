package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/metrics"
	"github.com/selivandex/market-insights/internal/adapters/redis"
	"github.com/selivandex/market-insights/internal/adapters/telegram"
	"github.com/selivandex/market-insights/internal/analytics"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// dailyLockName guards the daily scan across replicas. The lock is
// best effort: the upsert keyed by date makes concurrent runs
// idempotent, the lock only avoids wasted work.
const dailyLockName = "lock:daily_analytics"

const dailyLockTTL = 10 * time.Minute

// DailyStore persists finished daily records
type DailyStore interface {
	SaveDaily(ctx context.Context, record models.DailyAnalyticsRecord) error
}

// DailyWorker aggregates the previous UTC day once per day
type DailyWorker struct {
	aggregator *analytics.DailyAggregator
	store      DailyStore
	locks      *redis.Client
	notifier   *telegram.Notifier
	sink       *metrics.Sink
}

// NewDailyWorker creates new daily analytics worker
func NewDailyWorker(
	aggregator *analytics.DailyAggregator,
	store DailyStore,
	locks *redis.Client,
	notifier *telegram.Notifier,
	sink *metrics.Sink,
) *DailyWorker {
	return &DailyWorker{
		aggregator: aggregator,
		store:      store,
		locks:      locks,
		notifier:   notifier,
		sink:       sink,
	}
}

// Name returns worker name
func (w *DailyWorker) Name() string {
	return "daily_analytics"
}

// Run aggregates yesterday's articles into a daily record
// Called periodically by pkg/worker.PeriodicWorker
func (w *DailyWorker) Run(ctx context.Context) error {
	if !w.locks.TryLock(ctx, dailyLockName, dailyLockTTL) {
		logger.Info("daily analytics already running on another replica, skipping")
		return nil
	}
	defer w.locks.Unlock(ctx, dailyLockName)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	return w.AggregateDay(ctx, yesterday)
}

// AggregateDay aggregates one specific day and persists the record.
// Also used by the manual run endpoint with an explicit date.
func (w *DailyWorker) AggregateDay(ctx context.Context, day time.Time) error {
	started := time.Now()

	record, err := w.aggregator.Aggregate(ctx, day)
	if err != nil {
		// The zero record with the error marker is still persisted so
		// the failure is visible in the history, not just the logs.
		if saveErr := w.store.SaveDaily(ctx, record); saveErr != nil {
			logger.Error("failed to persist error marker record",
				zap.String("date", record.Date),
				zap.Error(saveErr),
			)
		}
		w.notifier.AlertError("daily analytics", err)
		w.recordMetric(record, started, err)
		return err
	}

	if err := w.store.SaveDaily(ctx, record); err != nil {
		w.notifier.AlertError("daily analytics", err)
		w.recordMetric(record, started, err)
		return err
	}

	w.notifier.SendDailySummary(record)
	w.recordMetric(record, started, nil)
	return nil
}

func (w *DailyWorker) recordMetric(record models.DailyAnalyticsRecord, started time.Time, err error) {
	metric := metrics.RunMetric{
		Timestamp:        time.Now().UTC(),
		RunType:          "daily_analytics",
		Saved:            record.ArticlesAnalyzed,
		ExecutionSeconds: time.Since(started).Seconds(),
		Success:          err == nil,
	}
	if err != nil {
		metric.Error = err.Error()
	}
	w.sink.Record(metric)
}
