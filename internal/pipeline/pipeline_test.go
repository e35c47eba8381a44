package pipeline

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/selivandex/market-insights/internal/adapters/ai"
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

type fakeProvider struct {
	candidates []articles.Candidate
	err        error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchArticles(ctx context.Context) ([]articles.Candidate, error) {
	return f.candidates, f.err
}

type fakeStore struct {
	recentURLs []string
	recentErr  error
	saved      []models.Article
	saveErr    error
}

func (f *fakeStore) RecentURLs(ctx context.Context, window time.Duration) ([]string, error) {
	return f.recentURLs, f.recentErr
}

func (f *fakeStore) SaveBatch(ctx context.Context, items []models.Article) (int, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, items...)
	return len(items), nil
}

type fakeGauge struct {
	calls int
	err   error
}

func (f *fakeGauge) Rolling(ctx context.Context, now time.Time) (models.RealtimeSentimentRecord, error) {
	f.calls++
	return models.RealtimeSentimentRecord{TimeWindow: "6 hours"}, f.err
}

type fakeGaugeStore struct {
	saves int
	err   error
}

func (f *fakeGaugeStore) SaveRealtime(ctx context.Context, record models.RealtimeSentimentRecord) error {
	f.saves++
	return f.err
}

func candidate(url string) articles.Candidate {
	return articles.Candidate{
		Headline:  "Markets rally on earnings beat",
		Source:    "Moneycontrol",
		URL:       url,
		Summary:   "Benchmark indices closed higher after strong quarterly results.",
		Sentiment: "Positive",
		Sectors:   []string{"IT"},
	}
}

func newTestPipeline(provider ai.Provider, store ArticleStore, gauge *fakeGauge, gaugeStore *fakeGaugeStore) *Pipeline {
	return New(provider, store, gauge, gaugeStore, 24*time.Hour, 50)
}

func TestPipeline_Run(t *testing.T) {
	provider := &fakeProvider{candidates: []articles.Candidate{
		candidate("https://example.com/1"),
		candidate("https://example.com/2"),
	}}
	store := &fakeStore{}
	gauge := &fakeGauge{}
	gaugeStore := &fakeGaugeStore{}

	stats, err := newTestPipeline(provider, store, gauge, gaugeStore).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Fetched != 2 || stats.NewArticles != 2 || stats.Saved != 2 {
		t.Errorf("stats = %+v, want 2 fetched/new/saved", stats)
	}
	if stats.Invalid != 0 || stats.Duplicates != 0 {
		t.Errorf("stats = %+v, want no rejects", stats)
	}
	if !stats.SentimentCalculated {
		t.Error("gauge should be recomputed after a successful run")
	}
	if gauge.calls != 1 || gaugeStore.saves != 1 {
		t.Errorf("gauge calls = %d, saves = %d, want 1/1", gauge.calls, gaugeStore.saves)
	}
}

func TestPipeline_SkipsKnownURLs(t *testing.T) {
	provider := &fakeProvider{candidates: []articles.Candidate{
		candidate("https://example.com/known"),
		candidate("https://example.com/new"),
	}}
	store := &fakeStore{recentURLs: []string{"https://example.com/known"}}

	stats, err := newTestPipeline(provider, store, &fakeGauge{}, &fakeGaugeStore{}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", stats.Duplicates)
	}
	if stats.NewArticles != 1 {
		t.Errorf("new articles = %d, want 1", stats.NewArticles)
	}
	if len(store.saved) != 1 || store.saved[0].URL != "https://example.com/new" {
		t.Errorf("saved = %+v, want only the new article", store.saved)
	}
}

func TestPipeline_SameBatchDuplicateAdmittedOnce(t *testing.T) {
	provider := &fakeProvider{candidates: []articles.Candidate{
		candidate("https://example.com/dup"),
		candidate("https://example.com/dup"),
	}}
	store := &fakeStore{}

	stats, err := newTestPipeline(provider, store, &fakeGauge{}, &fakeGaugeStore{}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.NewArticles != 1 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v, want 1 new and 1 duplicate", stats)
	}
}

func TestPipeline_InvalidCandidatesSkipped(t *testing.T) {
	bad := candidate("https://example.com/bad")
	bad.Sentiment = "Mixed"

	provider := &fakeProvider{candidates: []articles.Candidate{
		bad,
		candidate("https://example.com/good"),
	}}
	store := &fakeStore{}

	stats, err := newTestPipeline(provider, store, &fakeGauge{}, &fakeGaugeStore{}).Run(context.Background())
	if err != nil {
		t.Fatalf("invalid items must not fail the batch: %v", err)
	}

	if stats.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", stats.Invalid)
	}
	if stats.Saved != 1 {
		t.Errorf("saved = %d, want 1", stats.Saved)
	}
}

func TestPipeline_MalformedPayloadCompletesEmpty(t *testing.T) {
	provider := &fakeProvider{err: ai.ErrMalformedPayload}
	store := &fakeStore{}
	gauge := &fakeGauge{}

	stats, err := newTestPipeline(provider, store, gauge, &fakeGaugeStore{}).Run(context.Background())
	if err != nil {
		t.Fatalf("a malformed payload must not fail the run: %v", err)
	}

	if stats.Fetched != 0 || stats.Saved != 0 {
		t.Errorf("stats = %+v, want all zeros", stats)
	}
	if len(store.saved) != 0 {
		t.Error("nothing should be persisted from a discarded batch")
	}
}

func TestPipeline_TransportFailureFailsRun(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("gemini.generate failed after 3 attempts: timeout")}

	_, err := newTestPipeline(provider, &fakeStore{}, &fakeGauge{}, &fakeGaugeStore{}).Run(context.Background())
	if err == nil {
		t.Fatal("a transport failure that survived retries must fail the run")
	}
}

func TestPipeline_SaveFailureFailsRun(t *testing.T) {
	provider := &fakeProvider{candidates: []articles.Candidate{candidate("https://example.com/1")}}
	store := &fakeStore{saveErr: fmt.Errorf("connection refused")}

	stats, err := newTestPipeline(provider, store, &fakeGauge{}, &fakeGaugeStore{}).Run(context.Background())
	if err == nil {
		t.Fatal("a persistence failure must fail the run")
	}
	if stats.SentimentCalculated {
		t.Error("gauge must not be marked calculated after a failed save")
	}
}

func TestPipeline_DedupLoadFailureStillRuns(t *testing.T) {
	provider := &fakeProvider{candidates: []articles.Candidate{candidate("https://example.com/1")}}
	store := &fakeStore{recentErr: fmt.Errorf("connection refused")}

	stats, err := newTestPipeline(provider, store, &fakeGauge{}, &fakeGaugeStore{}).Run(context.Background())
	if err != nil {
		t.Fatalf("a failed dedup load must not block ingestion: %v", err)
	}
	if stats.Saved != 1 {
		t.Errorf("saved = %d, want 1", stats.Saved)
	}
}

func TestPipeline_GaugeFailureDoesNotFailRun(t *testing.T) {
	provider := &fakeProvider{candidates: []articles.Candidate{candidate("https://example.com/1")}}
	store := &fakeStore{}
	gauge := &fakeGauge{err: fmt.Errorf("scan failed")}

	stats, err := newTestPipeline(provider, store, gauge, &fakeGaugeStore{}).Run(context.Background())
	if err != nil {
		t.Fatalf("a gauge refresh failure must not fail the run: %v", err)
	}
	if stats.SentimentCalculated {
		t.Error("sentiment_calculated should be false when the refresh failed")
	}
	if stats.Saved != 1 {
		t.Errorf("saved = %d, want 1", stats.Saved)
	}
}
