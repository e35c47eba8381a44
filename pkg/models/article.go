package models

import "time"

// Sentiment labels are a closed set. Anything else fails admission
// and scores as neutral at the aggregation boundary.
const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

// Article represents one admitted news article. Articles are created once
// at admission and never mutated; the URL is the natural key.
type Article struct {
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
	Headline    string    `json:"headline" db:"headline"`
	Source      string    `json:"source" db:"source"`
	URL         string    `json:"url" db:"url"`
	Summary     string    `json:"summary" db:"summary"`
	Sentiment   string    `json:"sentiment" db:"sentiment"`
	Tickers     []string  `json:"tickers" db:"tickers"`
	Sectors     []string  `json:"sectors" db:"sectors"`
	ID          int64     `json:"id" db:"id"`
}

// SentimentScore converts a sentiment label to its numerical score.
// Unknown labels score as neutral; both aggregators must go through
// this single mapping.
func SentimentScore(sentiment string) int {
	switch sentiment {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// ValidSentiment reports whether the label belongs to the closed set.
func ValidSentiment(sentiment string) bool {
	switch sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}
