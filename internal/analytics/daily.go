package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// ArticleLister is the read surface both aggregators need from the
// persisted store: one ordered page at a time.
type ArticleLister interface {
	ListPage(ctx context.Context, start, end time.Time, after *articles.PageCursor, limit int) ([]models.Article, error)
}

// DailyAggregator computes the per-day sentiment breakdown with a
// cursor-paginated scan: peak memory stays at one page regardless of
// how many articles the day holds.
type DailyAggregator struct {
	store    ArticleLister
	pageSize int
}

// NewDailyAggregator creates a daily aggregator with the given page size
func NewDailyAggregator(store ArticleLister, pageSize int) *DailyAggregator {
	return &DailyAggregator{
		store:    store,
		pageSize: pageSize,
	}
}

// Aggregate scans all articles of the given UTC calendar day and folds
// them into a DailyAnalyticsRecord. Any scan error aborts the whole
// aggregation and yields a zero record with an error marker: a
// truncated average is silently wrong, an explicit zero-with-error is
// detectable downstream.
func (a *DailyAggregator) Aggregate(ctx context.Context, day time.Time) (models.DailyAnalyticsRecord, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	date := dayStart.Format("2006-01-02")

	logger.Info("starting daily analytics aggregation",
		zap.String("date", date),
		zap.Int("page_size", a.pageSize),
	)

	var fold sentimentFold
	var cursor *articles.PageCursor
	batches := 0
	total := 0

	for {
		page, err := a.store.ListPage(ctx, dayStart, dayEnd, cursor, a.pageSize)
		if err != nil {
			logger.Error("daily aggregation aborted",
				zap.String("date", date),
				zap.Int("processed", total),
				zap.Error(err),
			)
			return errorDailyRecord(date, err), fmt.Errorf("daily aggregation failed for %s: %w", date, err)
		}

		if len(page) == 0 {
			break
		}

		for i := range page {
			fold.add(&page[i])
		}
		total += len(page)
		batches++

		last := page[len(page)-1]
		cursor = &articles.PageCursor{PublishedAt: last.PublishedAt, ID: last.ID}

		logger.Debug("processed article batch",
			zap.Int("batch", len(page)),
			zap.Int("total", total),
		)

		// A short page means the range is exhausted
		if len(page) < a.pageSize {
			break
		}
	}

	record := models.DailyAnalyticsRecord{
		Date:                  date,
		OverallSentimentScore: fold.overallAverage(),
		ArticlesAnalyzed:      total,
		SectorBreakdown:       fold.sectorBreakdown(),
		BatchesProcessed:      batches,
		LastUpdated:           time.Now().UTC(),
	}

	if total == 0 {
		record.Note = "No articles found for this date"
		logger.Warn("no articles found for date, creating empty record",
			zap.String("date", date),
		)
		return record, nil
	}

	logger.Info("daily analytics calculated",
		zap.String("date", date),
		zap.Float64("overall_score", record.OverallSentimentScore),
		zap.Int("articles", total),
		zap.Int("batches", batches),
	)
	return record, nil
}

// sentimentFold keeps running sums and counts per bucket. The fold is
// commutative and associative, so page order cannot change the result.
type sentimentFold struct {
	overallSum   int
	overallCount int
	sectorSum    map[string]int
	sectorCount  map[string]int
}

func (f *sentimentFold) add(article *models.Article) {
	score := models.SentimentScore(article.Sentiment)
	f.overallSum += score
	f.overallCount++

	if f.sectorSum == nil {
		f.sectorSum = make(map[string]int)
		f.sectorCount = make(map[string]int)
	}
	for _, sector := range article.Sectors {
		if !models.KnownSector(sector) {
			continue
		}
		f.sectorSum[sector] += score
		f.sectorCount[sector]++
	}
}

func (f *sentimentFold) overallAverage() float64 {
	if f.overallCount == 0 {
		return 0.0
	}
	return round3(float64(f.overallSum) / float64(f.overallCount))
}

// sectorBreakdown always enumerates all fixed sectors; sectors without
// observations stay at 0.0.
func (f *sentimentFold) sectorBreakdown() map[string]float64 {
	breakdown := models.EmptySectorBreakdown()
	for sector, count := range f.sectorCount {
		if count == 0 {
			continue
		}
		breakdown[sector] = round3(float64(f.sectorSum[sector]) / float64(count))
	}
	return breakdown
}

func errorDailyRecord(date string, err error) models.DailyAnalyticsRecord {
	return models.DailyAnalyticsRecord{
		Date:            date,
		SectorBreakdown: models.EmptySectorBreakdown(),
		Error:           err.Error(),
		LastUpdated:     time.Now().UTC(),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
