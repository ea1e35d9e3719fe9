package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// RedisStateStore holds in-flight OAuth handshake state in Redis so a
// callback can land on any instance behind the load balancer.
type RedisStateStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateStore creates a Redis-backed handshake state store
func NewRedisStateStore(cfg RedisConfig) (*RedisStateStore, error) {
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

	return &RedisStateStore{
		client:    client,
		keyPrefix: "connect:state:",
	}, nil
}

// NewRedisStateStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisStateStoreWithClient(client *redis.Client, keyPrefix string) *RedisStateStore {
	if keyPrefix == "" {
		keyPrefix = "connect:state:"
	}
	return &RedisStateStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Put stores handshake state under the state token with a TTL
func (s *RedisStateStore) Put(ctx context.Context, state string, hs *connection.HandshakeState, ttl time.Duration) error {
	payload, err := json.Marshal(hs)
	if err != nil {
		return fmt.Errorf("failed to encode handshake state: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+state, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store handshake state: %w", err)
	}
	return nil
}

// Take retrieves and removes the handshake state atomically. GETDEL makes the
// token single-use: a replayed callback sees ErrStateNotFound.
func (s *RedisStateStore) Take(ctx context.Context, state string) (*connection.HandshakeState, error) {
	payload, err := s.client.GetDel(ctx, s.keyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, connection.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load handshake state: %w", err)
	}

	var hs connection.HandshakeState
	if err := json.Unmarshal(payload, &hs); err != nil {
		return nil, fmt.Errorf("failed to decode handshake state: %w", err)
	}
	return &hs, nil
}

// Close closes the Redis client
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStateStore implements StateStore
var _ connection.StateStore = (*RedisStateStore)(nil)
