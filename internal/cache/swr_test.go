package cache

import (
	"context"
	"encoding/json"
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

type fakeBackend struct {
	entries map[string]Entry
	getErr  error
	setErr  error
	gets    int
	sets    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: make(map[string]Entry)}
}

func (b *fakeBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	b.gets++
	if b.getErr != nil {
		return Entry{}, false, b.getErr
	}
	entry, ok := b.entries[key]
	return entry, ok, nil
}

func (b *fakeBackend) Set(ctx context.Context, key string, entry Entry) error {
	b.sets++
	if b.setErr != nil {
		return b.setErr
	}
	b.entries[key] = entry
	return nil
}

func countingFetcher(payload string, err error) (Fetcher, *int) {
	calls := 0
	return func(ctx context.Context) (json.RawMessage, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return json.RawMessage(payload), nil
	}, &calls
}

func testCache(backend Backend, at time.Time) *Cache {
	c := New(backend, time.Second)
	c.now = func() time.Time { return at }
	return c
}

func TestCache_FreshHitSkipsFetch(t *testing.T) {
	now := time.Now()
	backend := newFakeBackend()
	backend.entries["k"] = Entry{StoredAt: now.Add(-time.Minute), Payload: json.RawMessage(`"cached"`)}

	fetch, calls := countingFetcher(`"fetched"`, nil)
	c := testCache(backend, now)

	payload, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freshness != Fresh {
		t.Errorf("freshness = %v, want Fresh", freshness)
	}
	if string(payload) != `"cached"` {
		t.Errorf("payload = %s, want cached value", payload)
	}
	if *calls != 0 {
		t.Errorf("fetcher called %d times, want 0", *calls)
	}
}

func TestCache_MissFetchesAndStores(t *testing.T) {
	backend := newFakeBackend()
	fetch, calls := countingFetcher(`"fetched"`, nil)
	c := testCache(backend, time.Now())

	payload, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freshness != Fresh {
		t.Errorf("freshness = %v, want Fresh", freshness)
	}
	if string(payload) != `"fetched"` {
		t.Errorf("payload = %s, want fetched value", payload)
	}
	if *calls != 1 {
		t.Errorf("fetcher called %d times, want 1", *calls)
	}
	if backend.sets != 1 {
		t.Errorf("backend sets = %d, want 1", backend.sets)
	}
}

func TestCache_ExpiredEntryRefetches(t *testing.T) {
	now := time.Now()
	backend := newFakeBackend()
	backend.entries["k"] = Entry{StoredAt: now.Add(-10 * time.Minute), Payload: json.RawMessage(`"old"`)}

	fetch, calls := countingFetcher(`"new"`, nil)
	c := testCache(backend, now)

	payload, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freshness != Fresh {
		t.Errorf("freshness = %v, want Fresh", freshness)
	}
	if string(payload) != `"new"` {
		t.Errorf("payload = %s, want refetched value", payload)
	}
	if *calls != 1 {
		t.Errorf("fetcher called %d times, want 1", *calls)
	}
}

func TestCache_StaleServedWhenFetchFails(t *testing.T) {
	now := time.Now()
	backend := newFakeBackend()
	backend.entries["k"] = Entry{StoredAt: now.Add(-10 * time.Minute), Payload: json.RawMessage(`"old"`)}

	fetch, _ := countingFetcher("", fmt.Errorf("upstream down"))
	c := testCache(backend, now)

	payload, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err != nil {
		t.Fatalf("stale path must not error: %v", err)
	}
	if freshness != Stale {
		t.Errorf("freshness = %v, want Stale", freshness)
	}
	if string(payload) != `"old"` {
		t.Errorf("payload = %s, want stale value", payload)
	}
}

func TestCache_UnavailableWhenEmptyAndFetchFails(t *testing.T) {
	backend := newFakeBackend()
	fetch, _ := countingFetcher("", fmt.Errorf("upstream down"))
	c := testCache(backend, time.Now())

	_, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err == nil {
		t.Fatal("expected an error when nothing can serve")
	}
	if freshness != Unavailable {
		t.Errorf("freshness = %v, want Unavailable", freshness)
	}
}

func TestCache_BackendFailureDegradesToFetch(t *testing.T) {
	backend := newFakeBackend()
	backend.getErr = fmt.Errorf("redis down")

	fetch, calls := countingFetcher(`"direct"`, nil)
	c := testCache(backend, time.Now())

	payload, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err != nil {
		t.Fatalf("backend failure must not fail the read: %v", err)
	}
	if freshness != Fresh {
		t.Errorf("freshness = %v, want Fresh", freshness)
	}
	if string(payload) != `"direct"` {
		t.Errorf("payload = %s, want direct fetch value", payload)
	}
	if *calls != 1 {
		t.Errorf("fetcher called %d times, want 1", *calls)
	}
}

func TestCache_StoreFailureStillServesPayload(t *testing.T) {
	backend := newFakeBackend()
	backend.setErr = fmt.Errorf("redis down")

	fetch, _ := countingFetcher(`"fetched"`, nil)
	c := testCache(backend, time.Now())

	payload, freshness, err := c.Get(context.Background(), "k", 5*time.Minute, fetch)
	if err != nil {
		t.Fatalf("a failed store must not fail the read: %v", err)
	}
	if freshness != Fresh || string(payload) != `"fetched"` {
		t.Errorf("got %v / %s, want Fresh / fetched", freshness, payload)
	}
}
