package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is the shared CounterStore used when multiple API instances
// must agree on quotas.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter wraps a Redis client. prefix namespaces the counter keys
// (e.g. "ptohub:rl").
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if client == nil {
		panic("ratelimit: redis client is required")
	}
	if prefix == "" {
		prefix = "ptohub:rl"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

// Incr bumps the windowed counter with INCR and pins the expiry on the
// first hit only, so the window is anchored at the first request.
func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	namespaced := r.prefix + ":" + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, namespaced)
	pipe.ExpireNX(ctx, namespaced, window)
	ttl := pipe.TTL(ctx, namespaced)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis counter incr: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}
