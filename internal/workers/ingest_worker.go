package workers

import (
	"context"
	"time"

	"github.com/selivandex/market-insights/internal/adapters/metrics"
	"github.com/selivandex/market-insights/internal/adapters/telegram"
	"github.com/selivandex/market-insights/internal/pipeline"
)

// IngestWorker drives periodic ingestion runs
type IngestWorker struct {
	pipeline *pipeline.Pipeline
	notifier *telegram.Notifier
	sink     *metrics.Sink
}

// NewIngestWorker creates new ingestion worker
func NewIngestWorker(p *pipeline.Pipeline, notifier *telegram.Notifier, sink *metrics.Sink) *IngestWorker {
	return &IngestWorker{
		pipeline: p,
		notifier: notifier,
		sink:     sink,
	}
}

// Name returns worker name
func (w *IngestWorker) Name() string {
	return "news_ingest"
}

// Run executes one ingestion pass
// Called periodically by pkg/worker.PeriodicWorker
func (w *IngestWorker) Run(ctx context.Context) error {
	stats, err := w.pipeline.Run(ctx)

	metric := metrics.RunMetric{
		Timestamp:        time.Now().UTC(),
		RunType:          "ingest",
		Fetched:          stats.Fetched,
		Invalid:          stats.Invalid,
		Duplicates:       stats.Duplicates,
		NewArticles:      stats.NewArticles,
		Saved:            stats.Saved,
		ExecutionSeconds: stats.ExecutionTimeSeconds,
		Success:          err == nil,
	}
	if err != nil {
		metric.Error = err.Error()
		w.notifier.AlertError("news ingestion", err)
	}
	w.sink.Record(metric)

	return err
}
