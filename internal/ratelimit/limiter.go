package ratelimit

import "context"

// RateLimiter controls upload throughput per client key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
