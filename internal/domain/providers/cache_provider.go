package providers

import (
	"context"
)

// CacheProvider is the byte-level cache behind the suggestion pipeline.
// Get reports a miss as an error; callers treat any error as a miss and
// fall through to the origin.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
}
