package metrics

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/pkg/logger"
)

// RunMetric is one pipeline or aggregation run, recorded for
// operational analysis.
type RunMetric struct {
	Timestamp        time.Time
	RunType          string
	Fetched          int
	Invalid          int
	Duplicates       int
	NewArticles      int
	Saved            int
	ExecutionSeconds float64
	Success          bool
	Error            string
}

// Sink buffers run metrics and flushes them to ClickHouse in batches.
// A nil *Sink is a valid no-op; losing metrics must never fail a run,
// so all errors stop at the log.
type Sink struct {
	db       *sqlx.DB
	buffer   []RunMetric
	bufferMu sync.Mutex
	maxBatch int
	ticker   *time.Ticker
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSink connects to ClickHouse and starts the flush loop, or returns
// nil when the sink is disabled in config.
func NewSink(cfg *config.MetricsConfig) (*Sink, error) {
	if !cfg.Enabled {
		logger.Info("run metrics sink disabled")
		return nil, nil
	}

	dsn := fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Addr,
		cfg.Database,
	)

	db, err := sqlx.Connect("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		db:       db,
		buffer:   make([]RunMetric, 0, 64),
		maxBatch: 64,
		ticker:   time.NewTicker(30 * time.Second),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.autoFlush()

	logger.Info("run metrics sink connected",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database),
	)
	return s, nil
}

// Record buffers one run metric
func (s *Sink) Record(metric RunMetric) {
	if s == nil {
		return
	}

	s.bufferMu.Lock()
	s.buffer = append(s.buffer, metric)
	shouldFlush := len(s.buffer) >= s.maxBatch
	s.bufferMu.Unlock()

	if shouldFlush {
		s.flush()
	}
}

// Close flushes remaining metrics and closes the connection
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.ticker.Stop()
	s.db.Close()
}

func (s *Sink) autoFlush() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.ctx.Done():
			// Final flush before exit
			s.flush()
			return
		}
	}
}

func (s *Sink) flush() {
	s.bufferMu.Lock()
	if len(s.buffer) == 0 {
		s.bufferMu.Unlock()
		return
	}
	toWrite := make([]RunMetric, len(s.buffer))
	copy(toWrite, s.buffer)
	s.buffer = s.buffer[:0]
	s.bufferMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.insertBatch(ctx, toWrite); err != nil {
		logger.Warn("failed to flush run metrics",
			zap.Int("dropped", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed run metrics",
		zap.Int("count", len(toWrite)),
	)
}

func (s *Sink) insertBatch(ctx context.Context, metrics []RunMetric) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO pipeline_runs
		(timestamp, run_type, fetched, invalid, duplicates, new_articles,
		 saved, execution_seconds, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		_, err = stmt.ExecContext(ctx,
			m.Timestamp,
			m.RunType,
			m.Fetched,
			m.Invalid,
			m.Duplicates,
			m.NewArticles,
			m.Saved,
			m.ExecutionSeconds,
			m.Success,
			m.Error,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert run metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
