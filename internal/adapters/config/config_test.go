package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Interval:    15 * time.Minute,
			DedupWindow: 24 * time.Hour,
			MaxBatch:    50,
		},
		Analytics: AnalyticsConfig{
			PageSize:      1000,
			RollingWindow: 6 * time.Hour,
		},
		Market: MarketConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "max batch too large",
			mutate:  func(c *Config) { c.Pipeline.MaxBatch = 51 },
			wantErr: true,
		},
		{
			name:    "max batch zero",
			mutate:  func(c *Config) { c.Pipeline.MaxBatch = 0 },
			wantErr: true,
		},
		{
			name:    "negative dedup window",
			mutate:  func(c *Config) { c.Pipeline.DedupWindow = -time.Hour },
			wantErr: true,
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.Analytics.PageSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Market.CacheTTL = 0 },
			wantErr: true,
		},
		{
			name:    "telegram token without chat id",
			mutate:  func(c *Config) { c.Telegram.BotToken = "123:abc" },
			wantErr: true,
		},
		{
			name: "telegram token with chat id",
			mutate: func(c *Config) {
				c.Telegram.BotToken = "123:abc"
				c.Telegram.ChatID = 42
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Name:     "insights",
		User:     "app",
		Password: "secret",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=app password=secret dbname=insights sslmode=require"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}
