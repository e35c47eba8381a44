package articles

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// PageCursor marks the last record of a page for keyset pagination.
// The next page starts strictly after (published_at, id).
type PageCursor struct {
	PublishedAt time.Time
	ID          int64
}

// Repository handles database operations for articles
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new articles repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveBatch persists admitted articles in one transaction. Conflicting
// URLs are skipped by the store, so racing ingestion runs cannot
// duplicate a record.
func (r *Repository) SaveBatch(ctx context.Context, items []models.Article) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (
			headline, source, url, summary, sentiment,
			tickers, sectors, published_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	saved := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx,
			item.Headline,
			item.Source,
			item.URL,
			item.Summary,
			item.Sentiment,
			pq.Array(item.Tickers),
			pq.Array(item.Sectors),
			now,
			now,
		)
		if err != nil {
			logger.Warn("failed to save article",
				zap.String("url", item.URL),
				zap.Error(err),
			)
			continue
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	logger.Debug("saved articles",
		zap.Int("total", len(items)),
		zap.Int("saved", saved),
	)
	return saved, nil
}

// RecentURLs projects only the url column for articles published inside
// the trailing window. One query per run, not one per candidate.
func (r *Repository) RecentURLs(ctx context.Context, window time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-window)

	var urls []string
	err := r.db.SelectContext(ctx, &urls, `
		SELECT url
		FROM articles
		WHERE published_at >= $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent urls: %w", err)
	}
	return urls, nil
}

// ListPage returns one ascending page of articles published inside
// [start, end). A nil cursor starts from the beginning of the range;
// otherwise the page starts strictly after the cursor position.
func (r *Repository) ListPage(ctx context.Context, start, end time.Time, after *PageCursor, limit int) ([]models.Article, error) {
	query := `
		SELECT id, headline, source, url, summary, sentiment,
		       tickers, sectors, published_at, processed_at
		FROM articles
		WHERE published_at >= $1 AND published_at < $2
	`
	args := []interface{}{start, end}

	if after != nil {
		query += ` AND (published_at, id) > ($3, $4)`
		args = append(args, after.PublishedAt, after.ID)
	}

	query += fmt.Sprintf(` ORDER BY published_at ASC, id ASC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query article page: %w", err)
	}
	defer rows.Close()

	page := make([]models.Article, 0, limit)
	for rows.Next() {
		var item models.Article
		var tickers, sectors pq.StringArray

		if err := rows.Scan(
			&item.ID,
			&item.Headline,
			&item.Source,
			&item.URL,
			&item.Summary,
			&item.Sentiment,
			&tickers,
			&sectors,
			&item.PublishedAt,
			&item.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}

		item.Tickers = tickers
		item.Sectors = sectors
		page = append(page, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("article page iteration failed: %w", err)
	}

	return page, nil
}
