package articles

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/pkg/logger"
)

// RecentURLLoader loads the URL projection for the dedup window.
type RecentURLLoader interface {
	RecentURLs(ctx context.Context, window time.Duration) ([]string, error)
}

// DedupSet is the in-memory set of article URLs already admitted inside
// the trailing dedup window. It is rebuilt from the store at the start
// of each ingestion run; admitted keys reject same-run duplicates too.
type DedupSet struct {
	seen map[string]struct{}
}

// NewDedupSet builds a set from known URLs
func NewDedupSet(urls []string) *DedupSet {
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		seen[u] = struct{}{}
	}
	return &DedupSet{seen: seen}
}

// LoadDedupSet performs the single projected range query over the
// store. A load failure starts the set empty (fail open): accepting a
// few duplicates is tolerable, a blocked pipeline is not.
func LoadDedupSet(ctx context.Context, loader RecentURLLoader, window time.Duration) *DedupSet {
	urls, err := loader.RecentURLs(ctx, window)
	if err != nil {
		logger.Error("failed to load existing URLs, dedup set starts empty",
			zap.Duration("window", window),
			zap.Error(err),
		)
		return NewDedupSet(nil)
	}

	logger.Info("loaded existing URLs for deduplication",
		zap.Int("urls", len(urls)),
		zap.Duration("window", window),
	)
	return NewDedupSet(urls)
}

// Contains reports whether the URL was already admitted
func (s *DedupSet) Contains(url string) bool {
	_, ok := s.seen[url]
	return ok
}

// Admit records a newly admitted URL
func (s *DedupSet) Admit(url string) {
	s.seen[url] = struct{}{}
}

// Size returns the number of known URLs
func (s *DedupSet) Size() int {
	return len(s.seen)
}
