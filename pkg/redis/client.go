// Package redis provides a thin wrapper around go-redis/v9 used as a
// best-effort cache of recently inserted natural keys. The Postgres
// uniqueness constraint remains the final authority; a cold or unavailable
// cache only costs an extra store round-trip.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/config"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ingest:seen:"

// Client wraps a go-redis client.
type Client struct {
	rdb    *redis.Client
	keyTTL time.Duration
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb, keyTTL: cfg.KeyTTL}, nil
}

// SeenKeys returns, for each natural key, whether the cache has seen it.
// The whole batch is resolved in a single MGET round-trip.
func (c *Client) SeenKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = keyPrefix + k
	}
	values, err := c.rdb.MGet(ctx, cacheKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("checking seen keys: %w", err)
	}
	seen := make(map[string]bool, len(keys))
	for i, v := range values {
		seen[keys[i]] = v != nil
	}
	return seen, nil
}

// MarkSeen records natural keys in the cache with the configured TTL.
// Writes are pipelined into one round-trip.
func (c *Client) MarkSeen(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, k := range keys {
		pipe.Set(ctx, keyPrefix+k, 1, c.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("marking seen keys: %w", err)
	}
	return nil
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
