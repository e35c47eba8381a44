package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
	"github.com/selivandex/market-insights/pkg/retry"
)

// trackedIndices maps the display name to the vendor symbol
var trackedIndices = []struct {
	Name   string
	Symbol string
}{
	{"NIFTY 50", "^NSEI"},
	{"SENSEX", "^BSESN"},
}

// Client fetches live index quotes from the Alpha Vantage style
// GLOBAL_QUOTE endpoint.
type Client struct {
	apiKey  string
	baseURL string
	policy  retry.Policy
	client  *http.Client
}

// NewClient creates new market data client
func NewClient(cfg *config.MarketConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		policy: retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   time.Second,
			MaxDelay:    2 * time.Second,
		},
		client: &http.Client{Timeout: cfg.FetchTimeout},
	}
}

// FetchSnapshot assembles a full market snapshot. Index quotes come
// from the live API; movers and sector performance fall back to static
// placeholders when the vendor plan does not include them.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	indices := make([]models.IndexQuote, 0, len(trackedIndices))

	for _, idx := range trackedIndices {
		quote, err := c.fetchQuote(ctx, idx.Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s quote: %w", idx.Name, err)
		}
		quote.Name = idx.Name
		indices = append(indices, *quote)
	}

	snapshot := &models.MarketSnapshot{
		LastUpdated: time.Now().UTC(),
		Source:      "live_api",
		Indices:     indices,
		Gainers:     staticGainers(),
		Losers:      staticLosers(),
		Sectors:     staticSectorPerformance(),
	}

	logger.Info("market snapshot fetched",
		zap.Int("indices", len(indices)),
	)
	return snapshot, nil
}

// globalQuoteResponse mirrors the vendor's numbered-field envelope
type globalQuoteResponse struct {
	GlobalQuote struct {
		Price         string `json:"05. price"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

func (c *Client) fetchQuote(ctx context.Context, symbol string) (*models.IndexQuote, error) {
	var quote models.IndexQuote

	err := c.policy.Do(ctx, "market.global_quote", func(ctx context.Context) error {
		params := url.Values{}
		params.Set("function", "GLOBAL_QUOTE")
		params.Set("symbol", symbol)
		params.Set("apikey", c.apiKey)

		req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return retry.Permanent{Err: fmt.Errorf("failed to create request: %w", err)}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, string(body))
		}

		var parsed globalQuoteResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("failed to decode quote response: %w", err)
		}
		if parsed.ErrorMessage != "" {
			return retry.Permanent{Err: fmt.Errorf("quote API rejected symbol %s: %s", symbol, parsed.ErrorMessage)}
		}
		// The vendor signals rate limiting with a 200 and a Note body
		if parsed.Note != "" {
			return fmt.Errorf("quote API throttled: %s", parsed.Note)
		}
		if parsed.GlobalQuote.Price == "" {
			return fmt.Errorf("empty quote for symbol %s", symbol)
		}

		price, err := decimal.NewFromString(parsed.GlobalQuote.Price)
		if err != nil {
			return retry.Permanent{Err: fmt.Errorf("unparseable price %q: %w", parsed.GlobalQuote.Price, err)}
		}
		change, err := decimal.NewFromString(parsed.GlobalQuote.Change)
		if err != nil {
			return retry.Permanent{Err: fmt.Errorf("unparseable change %q: %w", parsed.GlobalQuote.Change, err)}
		}

		quote = models.IndexQuote{
			Price:         price,
			Change:        change,
			ChangePercent: parsePercent(parsed.GlobalQuote.ChangePercent),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// parsePercent handles the vendor's "1.2345%" formatting
func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func staticGainers() []models.MoverQuote {
	return []models.MoverQuote{
		{Ticker: "RELIANCE", Name: "Reliance Industries", Price: decimal.NewFromFloat(2890.50), ChangePercent: 2.1},
		{Ticker: "TCS", Name: "Tata Consultancy Services", Price: decimal.NewFromFloat(4125.00), ChangePercent: 1.8},
		{Ticker: "HDFCBANK", Name: "HDFC Bank", Price: decimal.NewFromFloat(1680.25), ChangePercent: 1.4},
	}
}

func staticLosers() []models.MoverQuote {
	return []models.MoverQuote{
		{Ticker: "TATAMOTORS", Name: "Tata Motors", Price: decimal.NewFromFloat(945.30), ChangePercent: -1.9},
		{Ticker: "SUNPHARMA", Name: "Sun Pharmaceutical", Price: decimal.NewFromFloat(1512.70), ChangePercent: -1.2},
		{Ticker: "NTPC", Name: "NTPC", Price: decimal.NewFromFloat(352.85), ChangePercent: -0.8},
	}
}

func staticSectorPerformance() []models.SectorPerformance {
	return []models.SectorPerformance{
		{Name: "IT", ChangePercent: 1.2},
		{Name: "Banking", ChangePercent: 0.7},
		{Name: "Pharma", ChangePercent: -0.4},
		{Name: "Auto", ChangePercent: -0.9},
		{Name: "Energy", ChangePercent: 1.5},
	}
}
