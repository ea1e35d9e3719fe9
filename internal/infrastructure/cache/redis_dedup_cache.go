package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupCache is a shared fast-path cache in front of the durable dedup
// ledger. It answers "have we very likely seen this event" without a
// database round trip. It is an optimization only: correctness always comes
// from the relational ledger's unique constraint.
type RedisDedupCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDedupCache creates a Redis-backed dedup cache
func NewRedisDedupCache(cfg RedisConfig, ttl time.Duration) (*RedisDedupCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupCache{
		client:    client,
		keyPrefix: "sync:dedup:",
		ttl:       ttl,
	}, nil
}

// NewRedisDedupCacheWithClient creates a cache with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisDedupCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisDedupCache {
	if keyPrefix == "" {
		keyPrefix = "sync:dedup:"
	}
	return &RedisDedupCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Seen reports whether the event key is present in the cache
func (c *RedisDedupCache) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.key(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedup cache: %w", err)
	}
	return exists > 0, nil
}

// Remember records the event key with the configured TTL
func (c *RedisDedupCache) Remember(ctx context.Context, provider, eventID string) error {
	if err := c.client.SetNX(ctx, c.key(provider, eventID), "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record in dedup cache: %w", err)
	}
	return nil
}

// Forget removes the event key, used when a claim is rolled back
func (c *RedisDedupCache) Forget(ctx context.Context, provider, eventID string) error {
	if err := c.client.Del(ctx, c.key(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("failed to drop dedup cache entry: %w", err)
	}
	return nil
}

func (c *RedisDedupCache) key(provider, eventID string) string {
	return c.keyPrefix + provider + ":" + eventID
}

// Close closes the Redis client
func (c *RedisDedupCache) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisDedupCache) GetClient() *redis.Client {
	return c.client
}
