// Package redis wraps the go-redis client so the cache and the event bus
// share one connection pool and one configuration surface.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/careloop/conditiontrack/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client owns the shared go-redis connection pool.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection with a bounded
// ping, so a bad address fails at startup instead of on first use.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr(), err)
	}

	return &Client{rdb: rdb}, nil
}

// Raw exposes the underlying go-redis client for key commands and Pub/Sub.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
