package analytics

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeLister serves pages from an in-memory slice sorted by
// (published_at, id), mimicking the keyset pagination contract.
type fakeLister struct {
	articles   []models.Article
	calls      int
	failOnCall int
}

func (f *fakeLister) ListPage(ctx context.Context, start, end time.Time, after *articles.PageCursor, limit int) ([]models.Article, error) {
	f.calls++
	if f.failOnCall > 0 && f.calls >= f.failOnCall {
		return nil, fmt.Errorf("connection reset")
	}

	page := make([]models.Article, 0, limit)
	for _, a := range f.articles {
		if a.PublishedAt.Before(start) || !a.PublishedAt.Before(end) {
			continue
		}
		if after != nil {
			if a.PublishedAt.Before(after.PublishedAt) {
				continue
			}
			if a.PublishedAt.Equal(after.PublishedAt) && a.ID <= after.ID {
				continue
			}
		}
		page = append(page, a)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func dayArticles(day time.Time, specs []struct {
	sentiment string
	sectors   []string
}) []models.Article {
	out := make([]models.Article, 0, len(specs))
	for i, s := range specs {
		out = append(out, models.Article{
			ID:          int64(i + 1),
			URL:         fmt.Sprintf("https://example.com/%d", i+1),
			Sentiment:   s.sentiment,
			Sectors:     s.sectors,
			PublishedAt: day.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func TestDailyAggregator_Aggregate(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	store := &fakeLister{
		articles: dayArticles(day, []struct {
			sentiment string
			sectors   []string
		}{
			{models.SentimentPositive, []string{"IT"}},
			{models.SentimentNegative, []string{"Banking"}},
			{models.SentimentNeutral, nil},
		}),
	}

	agg := NewDailyAggregator(store, 1000)
	record, err := agg.Aggregate(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Date != "2024-01-05" {
		t.Errorf("date = %q, want 2024-01-05", record.Date)
	}
	if record.OverallSentimentScore != 0.0 {
		t.Errorf("overall score = %f, want 0.0", record.OverallSentimentScore)
	}
	if record.ArticlesAnalyzed != 3 {
		t.Errorf("articles analyzed = %d, want 3", record.ArticlesAnalyzed)
	}
	if record.BatchesProcessed != 1 {
		t.Errorf("batches = %d, want 1", record.BatchesProcessed)
	}

	// All fixed sectors present, observed ones averaged, rest at 0.0
	if len(record.SectorBreakdown) != len(models.Sectors) {
		t.Errorf("breakdown has %d keys, want %d", len(record.SectorBreakdown), len(models.Sectors))
	}
	if record.SectorBreakdown["IT"] != 1.0 {
		t.Errorf("IT = %f, want 1.0", record.SectorBreakdown["IT"])
	}
	if record.SectorBreakdown["Banking"] != -1.0 {
		t.Errorf("Banking = %f, want -1.0", record.SectorBreakdown["Banking"])
	}
	if record.SectorBreakdown["Pharma"] != 0.0 {
		t.Errorf("Pharma = %f, want 0.0", record.SectorBreakdown["Pharma"])
	}
}

func TestDailyAggregator_Rounding(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeLister{
		articles: dayArticles(day, []struct {
			sentiment string
			sectors   []string
		}{
			{models.SentimentPositive, nil},
			{models.SentimentPositive, nil},
			{models.SentimentNegative, nil},
		}),
	}

	agg := NewDailyAggregator(store, 1000)
	record, err := agg.Aggregate(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1/3 rounded to three decimals
	if record.OverallSentimentScore != 0.333 {
		t.Errorf("overall score = %f, want 0.333", record.OverallSentimentScore)
	}
}

func TestDailyAggregator_Pagination(t *testing.T) {
	day := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	specs := make([]struct {
		sentiment string
		sectors   []string
	}, 25)
	for i := range specs {
		specs[i].sentiment = models.SentimentPositive
	}

	store := &fakeLister{articles: dayArticles(day, specs)}
	agg := NewDailyAggregator(store, 10)

	record, err := agg.Aggregate(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.ArticlesAnalyzed != 25 {
		t.Errorf("articles analyzed = %d, want 25", record.ArticlesAnalyzed)
	}
	if record.BatchesProcessed != 3 {
		t.Errorf("batches = %d, want 3", record.BatchesProcessed)
	}
	// 10 + 10 + 5, the short page terminates the scan
	if store.calls != 3 {
		t.Errorf("store calls = %d, want 3", store.calls)
	}
	if record.OverallSentimentScore != 1.0 {
		t.Errorf("overall score = %f, want 1.0", record.OverallSentimentScore)
	}
}

func TestDailyAggregator_ExactPageBoundary(t *testing.T) {
	day := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)

	specs := make([]struct {
		sentiment string
		sectors   []string
	}, 20)
	for i := range specs {
		specs[i].sentiment = models.SentimentNeutral
	}

	store := &fakeLister{articles: dayArticles(day, specs)}
	agg := NewDailyAggregator(store, 10)

	record, err := agg.Aggregate(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.ArticlesAnalyzed != 20 {
		t.Errorf("articles analyzed = %d, want 20", record.ArticlesAnalyzed)
	}
	// Two full pages plus the empty page that proves exhaustion
	if store.calls != 3 {
		t.Errorf("store calls = %d, want 3", store.calls)
	}
	if record.BatchesProcessed != 2 {
		t.Errorf("batches = %d, want 2", record.BatchesProcessed)
	}
}

func TestDailyAggregator_EmptyDay(t *testing.T) {
	store := &fakeLister{}
	agg := NewDailyAggregator(store, 1000)

	record, err := agg.Aggregate(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Note == "" {
		t.Error("empty day should carry an explanatory note")
	}
	if record.Error != "" {
		t.Errorf("empty day is not an error, got %q", record.Error)
	}
	if record.ArticlesAnalyzed != 0 || record.OverallSentimentScore != 0.0 {
		t.Errorf("empty day should be all zeros, got %+v", record)
	}
	if len(record.SectorBreakdown) != len(models.Sectors) {
		t.Error("empty day still enumerates all sectors")
	}
}

func TestDailyAggregator_StoreFailure(t *testing.T) {
	day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

	specs := make([]struct {
		sentiment string
		sectors   []string
	}, 15)
	for i := range specs {
		specs[i].sentiment = models.SentimentPositive
	}

	// First page succeeds, second fails mid-scan
	store := &fakeLister{articles: dayArticles(day, specs), failOnCall: 2}
	agg := NewDailyAggregator(store, 10)

	record, err := agg.Aggregate(context.Background(), day)
	if err == nil {
		t.Fatal("expected an error from the aborted scan")
	}

	// Never a partial average: the record is zeroed with the marker set
	if record.Error == "" {
		t.Error("failed aggregation should set the error marker")
	}
	if record.ArticlesAnalyzed != 0 || record.OverallSentimentScore != 0.0 {
		t.Errorf("failed aggregation should not keep partial results, got %+v", record)
	}
}

func TestDailyAggregator_Idempotent(t *testing.T) {
	day := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	store := &fakeLister{
		articles: dayArticles(day, []struct {
			sentiment string
			sectors   []string
		}{
			{models.SentimentPositive, []string{"Energy"}},
			{models.SentimentPositive, []string{"Energy", "Metals"}},
			{models.SentimentNegative, []string{"Metals"}},
		}),
	}
	agg := NewDailyAggregator(store, 2)

	first, err := agg.Aggregate(context.Background(), day)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := agg.Aggregate(context.Background(), day)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	first.LastUpdated = time.Time{}
	second.LastUpdated = time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recomputation differs:\nfirst  %+v\nsecond %+v", first, second)
	}
}
