package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/pkg/logger"
)

// Freshness describes which tier of the degradation ladder served the
// payload: fresh cache or fetch, stale cache after a failed fetch, or
// nothing at all.
type Freshness int

const (
	Fresh Freshness = iota
	Stale
	Unavailable
)

// String returns freshness label
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unavailable"
	}
}

// Entry is a cached payload with the time the backend stored it.
// Freshness is decided by the cache layer, never by the backend.
type Entry struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Backend is the storage behind the cache. Implementations must keep
// entries retrievable past their TTL so the stale path can serve them.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

// Fetcher loads the payload from the upstream source of truth.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// Cache implements stale-while-revalidate over a Backend. A backend
// failure is treated as a miss, degrading to direct upstream fetches.
type Cache struct {
	backend      Backend
	fetchTimeout time.Duration
	now          func() time.Time
}

// New creates a cache with the given upstream fetch timeout
func New(backend Backend, fetchTimeout time.Duration) *Cache {
	return &Cache{
		backend:      backend,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// Get returns the payload for key, walking the degradation ladder:
// fresh cache entry, fresh fetch, stale cache entry, unavailable.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (json.RawMessage, Freshness, error) {
	entry, found, err := c.backend.Get(ctx, key)
	if err != nil {
		logger.Warn("cache backend lookup failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		found = false
	}

	if found && c.now().Sub(entry.StoredAt) < ttl {
		logger.Debug("cache hit",
			zap.String("key", key),
			zap.Duration("age", c.now().Sub(entry.StoredAt)),
		)
		return entry.Payload, Fresh, nil
	}

	payload, fetchErr := c.fetchBounded(ctx, fetch)
	if fetchErr == nil {
		if err := c.backend.Set(ctx, key, Entry{StoredAt: c.now(), Payload: payload}); err != nil {
			logger.Warn("failed to store cache entry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return payload, Fresh, nil
	}

	logger.Warn("upstream fetch failed, attempting stale entry",
		zap.String("key", key),
		zap.Error(fetchErr),
	)

	// Second lookup ignores age entirely
	entry, found, err = c.backend.Get(ctx, key)
	if err == nil && found {
		logger.Info("serving stale cache entry",
			zap.String("key", key),
			zap.Duration("age", c.now().Sub(entry.StoredAt)),
		)
		return entry.Payload, Stale, nil
	}

	return nil, Unavailable, fmt.Errorf("no cached data and upstream failed: %w", fetchErr)
}

// fetchBounded runs the fetcher under the configured timeout; a timeout
// counts as fetcher failure and triggers the stale path.
func (c *Cache) fetchBounded(ctx context.Context, fetch Fetcher) (json.RawMessage, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	return fetch(fetchCtx)
}
