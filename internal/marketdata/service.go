package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/selivandex/market-insights/internal/cache"
	"github.com/selivandex/market-insights/pkg/models"
)

// cacheKey is the single slot holding the latest market snapshot
const cacheKey = "market_data"

// staleWarning is attached to snapshots served past their TTL
const staleWarning = "Data may be outdated due to temporary API issues"

// SnapshotFetcher loads a fresh snapshot from the quote vendor
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// Service serves market snapshots through the stale-while-revalidate
// cache. Fresh responses keep their live source marker; stale responses
// are relabeled and carry a warning so clients can tell them apart.
type Service struct {
	fetcher SnapshotFetcher
	cache   *cache.Cache
	ttl     time.Duration
}

// NewService creates new market data service
func NewService(fetcher SnapshotFetcher, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
	}
}

// Snapshot returns the current market snapshot, serving stale data
// when the vendor is down. An error means both the vendor and the
// cache came up empty.
func (s *Service) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	payload, freshness, err := s.cache.Get(ctx, cacheKey, s.ttl, func(ctx context.Context) (json.RawMessage, error) {
		snapshot, err := s.fetcher.FetchSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snapshot)
	})
	if err != nil {
		return nil, fmt.Errorf("market data unavailable: %w", err)
	}

	var snapshot models.MarketSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt cached snapshot: %w", err)
	}

	if freshness == cache.Stale {
		snapshot.Source = "stale_cache"
		snapshot.Warning = staleWarning
	}
	return &snapshot, nil
}
