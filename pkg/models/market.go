package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndexQuote is a single market index quote.
type IndexQuote struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"change_percent"`
}

// MoverQuote is a top gainer or loser entry.
type MoverQuote struct {
	Ticker        string          `json:"ticker"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent float64         `json:"change_percent"`
}

// SectorPerformance is the day change of one sector index.
type SectorPerformance struct {
	Name          string  `json:"name"`
	ChangePercent float64 `json:"change_percent"`
}

// MarketSnapshot is the payload served by the market data endpoint.
// Source is "live_api" for fresh fetches and "stale_cache" when the
// snapshot was served past its TTL after an upstream failure.
type MarketSnapshot struct {
	LastUpdated time.Time           `json:"last_updated"`
	Source      string              `json:"source"`
	Warning     string              `json:"warning,omitempty"`
	Indices     []IndexQuote        `json:"indices"`
	Gainers     []MoverQuote        `json:"gainers"`
	Losers      []MoverQuote        `json:"losers"`
	Sectors     []SectorPerformance `json:"sectors"`
}
