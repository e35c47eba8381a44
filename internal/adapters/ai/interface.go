package ai

import (
	"context"
	"errors"

	"github.com/selivandex/market-insights/internal/articles"
)

// ErrMalformedPayload marks a completion-service response that was not
// parseable JSON or failed the list-level schema. The whole batch from
// that call is discarded; callers complete the run with zero admitted
// records instead of crashing.
var ErrMalformedPayload = errors.New("completion service returned malformed payload")

// Provider produces candidate articles from the generative completion
// service. Implementations are expected to be unreliable and
// rate-limited; calls are idempotent-safe to retry.
type Provider interface {
	Name() string
	FetchArticles(ctx context.Context) ([]articles.Candidate, error)
}
