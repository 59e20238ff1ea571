package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_000, 0)
	limiter, err := newRedisRateLimiter(rdb, 2, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("first upload should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("second upload should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("third upload should be rejected by rate limit")
	}

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("new second window should allow upload")
	}
}

func TestRedisRateLimiterAllowPerClient(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_100, 0)
	limiter, err := newRedisRateLimiter(rdb, 1, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	allowed, err := limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow(10.0.0.1) error = %v", err)
	}
	if !allowed {
		t.Fatal("first client should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "10.0.0.2")
	if err != nil {
		t.Fatalf("Allow(10.0.0.2) error = %v", err)
	}
	if !allowed {
		t.Fatal("second client should be allowed on first request")
	}

	allowed, err = limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow(10.0.0.1) error = %v", err)
	}
	if allowed {
		t.Fatal("first client's second request should be rejected")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
