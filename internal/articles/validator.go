package articles

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/selivandex/market-insights/pkg/models"
)

const (
	maxHeadlineLen = 500
	maxSourceLen   = 100
	minSummaryLen  = 10
	maxSummaryLen  = 1000
	maxTickers     = 20
)

// Candidate is an article as returned by the completion service,
// before validation and admission.
type Candidate struct {
	Headline  string   `json:"headline"`
	Source    string   `json:"source"`
	URL       string   `json:"url"`
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	Tickers   []string `json:"tickers"`
	Sectors   []string `json:"sectors"`
}

// FieldViolation is a single schema constraint failure
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ItemError reports all violations for one candidate in a batch
type ItemError struct {
	Headline   string           `json:"headline"`
	Violations []FieldViolation `json:"violations"`
	Index      int              `json:"index"`
}

// Error implements the error interface
func (e ItemError) Error() string {
	return fmt.Sprintf("candidate %d failed validation (%d violations)", e.Index, len(e.Violations))
}

// ValidateCandidate checks one candidate against the admissibility
// schema. It is a pure transform: tickers are normalized, sectors are
// filtered to the known set and deduplicated, and no state is touched.
func ValidateCandidate(c Candidate) (models.Article, []FieldViolation) {
	var violations []FieldViolation

	if n := utf8.RuneCountInString(c.Headline); n < 1 || n > maxHeadlineLen {
		violations = append(violations, FieldViolation{
			Field:   "headline",
			Message: fmt.Sprintf("must be 1-%d characters, got %d", maxHeadlineLen, n),
		})
	}

	if n := utf8.RuneCountInString(c.Source); n < 1 || n > maxSourceLen {
		violations = append(violations, FieldViolation{
			Field:   "source",
			Message: fmt.Sprintf("must be 1-%d characters, got %d", maxSourceLen, n),
		})
	}

	if n := utf8.RuneCountInString(c.Summary); n < minSummaryLen || n > maxSummaryLen {
		violations = append(violations, FieldViolation{
			Field:   "summary",
			Message: fmt.Sprintf("must be %d-%d characters, got %d", minSummaryLen, maxSummaryLen, n),
		})
	}

	if !validArticleURL(c.URL) {
		violations = append(violations, FieldViolation{
			Field:   "url",
			Message: "must be a valid http(s) URL",
		})
	}

	if !models.ValidSentiment(c.Sentiment) {
		violations = append(violations, FieldViolation{
			Field:   "sentiment",
			Message: fmt.Sprintf("must be one of Positive, Negative, Neutral, got %q", c.Sentiment),
		})
	}

	if len(c.Tickers) > maxTickers {
		violations = append(violations, FieldViolation{
			Field:   "tickers",
			Message: fmt.Sprintf("at most %d tickers allowed, got %d", maxTickers, len(c.Tickers)),
		})
	}

	if len(violations) > 0 {
		return models.Article{}, violations
	}

	return models.Article{
		Headline:  c.Headline,
		Source:    c.Source,
		URL:       c.URL,
		Summary:   c.Summary,
		Sentiment: c.Sentiment,
		Tickers:   normalizeTickers(c.Tickers),
		Sectors:   filterSectors(c.Sectors),
	}, nil
}

// ValidateBatch validates candidates independently, in lenient mode:
// invalid items are reported and skipped, never failing the batch.
func ValidateBatch(candidates []Candidate) ([]models.Article, []ItemError) {
	valid := make([]models.Article, 0, len(candidates))
	var itemErrors []ItemError

	for i, c := range candidates {
		article, violations := ValidateCandidate(c)
		if len(violations) > 0 {
			itemErrors = append(itemErrors, ItemError{
				Index:      i,
				Headline:   c.Headline,
				Violations: violations,
			})
			continue
		}
		valid = append(valid, article)
	}

	return valid, itemErrors
}

func validArticleURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// normalizeTickers upper-cases and trims tickers; entries that are
// empty after trimming are dropped, not rejected.
func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, strings.ToUpper(t))
	}
	return out
}

// filterSectors keeps only known sector tags, deduplicated as a set
// while preserving input order. Unrecognized tags are dropped silently.
func filterSectors(sectors []string) []string {
	seen := make(map[string]struct{}, len(sectors))
	out := make([]string, 0, len(sectors))
	for _, s := range sectors {
		s = strings.TrimSpace(s)
		if !models.KnownSector(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
