package articles

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/selivandex/market-insights/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeURLLoader struct {
	urls []string
	err  error
}

func (f *fakeURLLoader) RecentURLs(ctx context.Context, window time.Duration) ([]string, error) {
	return f.urls, f.err
}

func TestDedupSet_ContainsAndAdmit(t *testing.T) {
	set := NewDedupSet([]string{"https://a.example.com", "https://b.example.com"})

	if !set.Contains("https://a.example.com") {
		t.Error("preloaded URL should be contained")
	}
	if set.Contains("https://c.example.com") {
		t.Error("unknown URL should not be contained")
	}

	set.Admit("https://c.example.com")
	if !set.Contains("https://c.example.com") {
		t.Error("admitted URL should be contained afterwards")
	}
	if set.Size() != 3 {
		t.Errorf("size = %d, want 3", set.Size())
	}
}

func TestLoadDedupSet(t *testing.T) {
	loader := &fakeURLLoader{urls: []string{"https://x.example.com"}}
	set := LoadDedupSet(context.Background(), loader, 24*time.Hour)

	if set.Size() != 1 {
		t.Errorf("size = %d, want 1", set.Size())
	}
	if !set.Contains("https://x.example.com") {
		t.Error("loaded URL should be contained")
	}
}

func TestLoadDedupSet_FailsOpen(t *testing.T) {
	loader := &fakeURLLoader{err: fmt.Errorf("connection refused")}
	set := LoadDedupSet(context.Background(), loader, 24*time.Hour)

	// A load failure must not block ingestion
	if set == nil {
		t.Fatal("expected an empty set, got nil")
	}
	if set.Size() != 0 {
		t.Errorf("size = %d, want 0", set.Size())
	}

	set.Admit("https://y.example.com")
	if !set.Contains("https://y.example.com") {
		t.Error("set should remain usable after failed load")
	}
}
