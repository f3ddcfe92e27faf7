// Package redis provides the go-redis client wrapper and the family-scoped
// pub/sub used to fan feed events out across server instances.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client with convenience methods.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client from a URL (e.g., "redis://localhost:6379").
// The circuit breaker hook protects all operations against a slow or down Redis.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(NewCircuitBreakerHook())
	return &Client{rdb: rdb}, nil
}

// Ping verifies the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
