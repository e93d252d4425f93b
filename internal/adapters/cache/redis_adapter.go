package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/careloop/conditiontrack/internal/domain/providers"
	redisclient "github.com/careloop/conditiontrack/internal/infrastructure/clients/redis"
	"github.com/redis/go-redis/v9"
)

// RedisAdapter backs the suggestion cache with Redis, so repeated queries
// skip the remote provider across process restarts and replicas.
type RedisAdapter struct {
	client *redisclient.Client
}

// NewRedisAdapter creates a Redis-backed CacheProvider.
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return &RedisAdapter{client: client}
}

// Get returns the cached bytes for key. A missing key is reported as an
// error like any other miss.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := a.client.Raw().Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("cache miss: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key for ttlSeconds.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := a.client.Raw().Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
