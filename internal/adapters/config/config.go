package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Database  DatabaseConfig  `envconfig:"DATABASE"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	AI        AIConfig        `envconfig:"AI"`
	Market    MarketConfig    `envconfig:"MARKET"`
	Pipeline  PipelineConfig  `envconfig:"PIPELINE"`
	Analytics AnalyticsConfig `envconfig:"ANALYTICS"`
	Server    ServerConfig    `envconfig:"SERVER"`
	Telegram  TelegramConfig  `envconfig:"TELEGRAM"`
	Metrics   MetricsConfig   `envconfig:"METRICS"`
	Logging   LoggingConfig   `envconfig:"LOGGING"`
}

// DatabaseConfig represents PostgreSQL connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"insights"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// RedisConfig represents Redis cache backend parameters
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// AIConfig represents the generative completion service
type AIConfig struct {
	GeminiAPIKey string        `envconfig:"GEMINI_API_KEY" required:"true"`
	Model        string        `envconfig:"AI_MODEL" default:"gemini-2.0-flash-exp"`
	Timeout      time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	MaxAttempts  int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
}

// MarketConfig represents the external quote service
type MarketConfig struct {
	APIKey       string        `envconfig:"MARKET_API_KEY" required:"true"`
	BaseURL      string        `envconfig:"MARKET_BASE_URL" default:"https://www.alphavantage.co/query"`
	FetchTimeout time.Duration `envconfig:"MARKET_FETCH_TIMEOUT" default:"10s"`
	CacheTTL     time.Duration `envconfig:"MARKET_CACHE_TTL" default:"300s"`
}

// PipelineConfig represents ingestion parameters
type PipelineConfig struct {
	Interval    time.Duration `envconfig:"PIPELINE_INTERVAL" default:"15m"`
	DedupWindow time.Duration `envconfig:"PIPELINE_DEDUP_WINDOW" default:"24h"`
	MaxBatch    int           `envconfig:"PIPELINE_MAX_BATCH" default:"50"`
}

// AnalyticsConfig represents aggregation parameters
type AnalyticsConfig struct {
	PageSize         int           `envconfig:"ANALYTICS_PAGE_SIZE" default:"1000"`
	RollingWindow    time.Duration `envconfig:"ANALYTICS_ROLLING_WINDOW" default:"6h"`
	RealtimeInterval time.Duration `envconfig:"ANALYTICS_REALTIME_INTERVAL" default:"15m"`
	DailyInterval    time.Duration `envconfig:"ANALYTICS_DAILY_INTERVAL" default:"24h"`
}

// ServerConfig represents the HTTP API server
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

// TelegramConfig represents the optional alerting bot
type TelegramConfig struct {
	BotToken      string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID        int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
	AlertOnErrors bool   `envconfig:"TELEGRAM_ALERT_ON_ERRORS" default:"true"`
	DailySummary  bool   `envconfig:"TELEGRAM_DAILY_SUMMARY" default:"false"`
}

// MetricsConfig represents the optional ClickHouse run-metrics sink
type MetricsConfig struct {
	Enabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Addr     string `envconfig:"METRICS_CLICKHOUSE_ADDR" default:"localhost:9000"`
	Database string `envconfig:"METRICS_CLICKHOUSE_DB" default:"insights"`
	User     string `envconfig:"METRICS_CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"METRICS_CLICKHOUSE_PASSWORD" required:"false"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Pipeline.MaxBatch < 1 || c.Pipeline.MaxBatch > 50 {
		return fmt.Errorf("pipeline max batch must be between 1 and 50")
	}
	if c.Pipeline.DedupWindow <= 0 {
		return fmt.Errorf("dedup window must be positive")
	}
	if c.Analytics.PageSize < 1 {
		return fmt.Errorf("analytics page size must be positive")
	}
	if c.Analytics.RollingWindow <= 0 {
		return fmt.Errorf("rolling window must be positive")
	}
	if c.Market.CacheTTL <= 0 {
		return fmt.Errorf("market cache TTL must be positive")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when bot token is set")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
