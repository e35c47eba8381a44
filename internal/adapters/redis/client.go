package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/pkg/logger"
)

// Client wraps a standard Redis client for caching plus a RedLock
// manager used for best-effort run locks across replicas.
type Client struct {
	cache       *redis.Client
	lockManager *redlock.RedLock
}

// New creates new Redis client
func New(cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	cacheClient := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cacheClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	lockManager, err := redlock.NewRedLock(ctx, []string{"tcp://" + addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", addr),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		cache:       cacheClient,
		lockManager: lockManager,
	}, nil
}

// Close closes redis connections
func (c *Client) Close() error {
	if c.cache != nil {
		logger.Info("closing redis client")
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	return nil
}

// Health checks redis health
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.cache.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Get retrieves value from Redis cache
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.cache.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

// Set stores value in Redis cache with a retention duration
func (c *Client) Set(ctx context.Context, key string, value interface{}, retention time.Duration) error {
	return c.cache.Set(ctx, key, value, retention).Err()
}

// TryLock acquires a best-effort distributed lock. Returns false when
// the lock is already held elsewhere.
func (c *Client) TryLock(ctx context.Context, name string, ttl time.Duration) bool {
	expiry, err := c.lockManager.Lock(ctx, name, ttl)
	if err != nil || expiry <= 0 {
		return false
	}
	return true
}

// Unlock releases a lock acquired via TryLock
func (c *Client) Unlock(ctx context.Context, name string) {
	if err := c.lockManager.UnLock(ctx, name); err != nil {
		logger.Debug("failed to release lock",
			zap.String("lock", name),
			zap.Error(err),
		)
	}
}

// ErrNotFound is returned when a key is absent from the cache
var ErrNotFound = fmt.Errorf("redis: key not found")
