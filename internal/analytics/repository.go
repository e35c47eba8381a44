package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/selivandex/market-insights/pkg/models"
)

// realtimeSlot is the fixed key of the single rolling-gauge row.
const realtimeSlot = "current_sentiment"

// Repository persists aggregate records. Both writes are idempotent
// upserts: recomputing a range overwrites, never appends.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new analytics repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveDaily upserts one day's analytics record, keyed by date
func (r *Repository) SaveDaily(ctx context.Context, record models.DailyAnalyticsRecord) error {
	breakdown, err := json.Marshal(record.SectorBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal sector breakdown: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sentiment_history (
			date, overall_score, articles_analyzed, sector_breakdown,
			batches_processed, note, error, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			articles_analyzed = EXCLUDED.articles_analyzed,
			sector_breakdown = EXCLUDED.sector_breakdown,
			batches_processed = EXCLUDED.batches_processed,
			note = EXCLUDED.note,
			error = EXCLUDED.error,
			last_updated = EXCLUDED.last_updated
	`,
		record.Date,
		record.OverallSentimentScore,
		record.ArticlesAnalyzed,
		breakdown,
		record.BatchesProcessed,
		record.Note,
		record.Error,
		record.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save daily analytics: %w", err)
	}
	return nil
}

// GetDaily loads one day's analytics record
func (r *Repository) GetDaily(ctx context.Context, date string) (*models.DailyAnalyticsRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT date, overall_score, articles_analyzed, sector_breakdown,
		       batches_processed, note, error, last_updated
		FROM sentiment_history
		WHERE date = $1
	`, date)

	var record models.DailyAnalyticsRecord
	var breakdown []byte

	err := row.Scan(
		&record.Date,
		&record.OverallSentimentScore,
		&record.ArticlesAnalyzed,
		&breakdown,
		&record.BatchesProcessed,
		&record.Note,
		&record.Error,
		&record.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load daily analytics: %w", err)
	}

	if err := json.Unmarshal(breakdown, &record.SectorBreakdown); err != nil {
		return nil, fmt.Errorf("corrupt sector breakdown for %s: %w", date, err)
	}
	return &record, nil
}

// SaveRealtime overwrites the single rolling-gauge slot
func (r *Repository) SaveRealtime(ctx context.Context, record models.RealtimeSentimentRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO market_status (
			slot, average_score, articles_analyzed, time_window, last_updated
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slot) DO UPDATE SET
			average_score = EXCLUDED.average_score,
			articles_analyzed = EXCLUDED.articles_analyzed,
			time_window = EXCLUDED.time_window,
			last_updated = EXCLUDED.last_updated
	`,
		realtimeSlot,
		record.AverageScore,
		record.ArticlesAnalyzed,
		record.TimeWindow,
		record.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save realtime sentiment: %w", err)
	}
	return nil
}

// GetRealtime loads the current rolling-gauge value
func (r *Repository) GetRealtime(ctx context.Context) (*models.RealtimeSentimentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT average_score, articles_analyzed, time_window, last_updated
		FROM market_status
		WHERE slot = $1
	`, realtimeSlot)

	var record models.RealtimeSentimentRecord
	err := row.Scan(
		&record.AverageScore,
		&record.ArticlesAnalyzed,
		&record.TimeWindow,
		&record.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load realtime sentiment: %w", err)
	}
	return &record, nil
}
