package models

import "time"

// DailyAnalyticsRecord is the per-day sentiment breakdown, keyed by
// calendar date (UTC, YYYY-MM-DD). Recomputing the same day overwrites
// the previous record.
type DailyAnalyticsRecord struct {
	LastUpdated           time.Time          `json:"last_updated"`
	SectorBreakdown       map[string]float64 `json:"sector_breakdown"`
	Date                  string             `json:"date"`
	Note                  string             `json:"note,omitempty"`
	Error                 string             `json:"error,omitempty"`
	OverallSentimentScore float64            `json:"overall_sentiment_score"`
	ArticlesAnalyzed      int                `json:"articles_analyzed"`
	BatchesProcessed      int                `json:"batches_processed"`
}

// RealtimeSentimentRecord is the rolling sentiment gauge. A single
// well-known slot holds the current value; no history is retained.
type RealtimeSentimentRecord struct {
	LastUpdated      time.Time `json:"last_updated"`
	TimeWindow       string    `json:"time_window"`
	AverageScore     float64   `json:"average_score"`
	ArticlesAnalyzed int       `json:"articles_analyzed"`
}

// RunStats summarizes one ingestion run for callers and logs.
type RunStats struct {
	Fetched              int     `json:"fetched"`
	Invalid              int     `json:"invalid"`
	Duplicates           int     `json:"duplicates"`
	NewArticles          int     `json:"new_articles"`
	Saved                int     `json:"saved"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	SentimentCalculated  bool    `json:"sentiment_calculated"`
}
