package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testClient(baseURL string) *Client {
	return NewClient(&config.MarketConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		FetchTimeout: 2 * time.Second,
	})
}

func TestClient_FetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "GLOBAL_QUOTE" {
			t.Errorf("unexpected function param: %s", r.URL.Query().Get("function"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Global Quote": {
				"05. price": "22150.2500",
				"09. change": "131.7500",
				"10. change percent": "0.5985%"
			}
		}`))
	}))
	defer server.Close()

	snapshot, err := testClient(server.URL).FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshot.Indices) != 2 {
		t.Fatalf("indices = %d, want 2", len(snapshot.Indices))
	}
	if snapshot.Source != "live_api" {
		t.Errorf("source = %q, want live_api", snapshot.Source)
	}

	nifty := snapshot.Indices[0]
	if nifty.Name != "NIFTY 50" {
		t.Errorf("name = %q, want NIFTY 50", nifty.Name)
	}
	if !nifty.Price.Equal(decimal.RequireFromString("22150.25")) {
		t.Errorf("price = %s, want 22150.25", nifty.Price)
	}
	if nifty.ChangePercent != 0.5985 {
		t.Errorf("change percent = %f, want 0.5985", nifty.ChangePercent)
	}
}

func TestClient_FetchSnapshot_VendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call"}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL).FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected an error from the vendor rejection")
	}
}

func TestClient_FetchSnapshot_RetriesThrottle(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Vendor throttling: 200 with a Note body
			w.Write([]byte(`{"Note": "API call frequency exceeded"}`))
			return
		}
		w.Write([]byte(`{
			"Global Quote": {
				"05. price": "100.00",
				"09. change": "1.00",
				"10. change percent": "1.0000%"
			}
		}`))
	}))
	defer server.Close()

	snapshot, err := testClient(server.URL).FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("throttle should be retried: %v", err)
	}
	if len(snapshot.Indices) != 2 {
		t.Errorf("indices = %d, want 2", len(snapshot.Indices))
	}
	if calls < 3 {
		t.Errorf("calls = %d, want at least 3 (one retry plus second symbol)", calls)
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"0.5985%", 0.5985},
		{"-1.2000%", -1.2},
		{" 2.5% ", 2.5},
		{"garbage", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := parsePercent(tt.input); got != tt.expected {
			t.Errorf("parsePercent(%q) = %f, want %f", tt.input, got, tt.expected)
		}
	}
}
