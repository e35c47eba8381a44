package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisAdapter "github.com/selivandex/market-insights/internal/adapters/redis"
)

// Backend retention is deliberately much longer than any freshness TTL
// so expired entries stay readable for the stale path.
const backendRetention = 24 * time.Hour

// RedisBackend stores cache entries as JSON envelopes in Redis.
type RedisBackend struct {
	client *redisAdapter.Client
}

// NewRedisBackend creates a Redis-backed cache storage
func NewRedisBackend(client *redisAdapter.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get retrieves an entry regardless of its age
func (b *RedisBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := b.client.Get(ctx, key)
	if err == redisAdapter.ErrNotFound {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return entry, true, nil
}

// Set stores an entry with the long backend retention
func (b *RedisBackend) Set(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := b.client.Set(ctx, key, data, backendRetention); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
