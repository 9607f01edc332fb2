package respcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared Store used when multiple API instances should
// serve each other's cached responses.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("respcache: redis client is required")
	}
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	pipe := r.client.TxPipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("redis cache get: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return []byte(get.Val()), remaining, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// DeletePattern scans for matching keys and removes them in batches. The
// '*' glob syntax matches Redis MATCH semantics.
func (r *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var dropped int

	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		dropped += int(n)
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			if err := flush(); err != nil {
				return dropped, fmt.Errorf("redis cache delete: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return dropped, fmt.Errorf("redis cache scan: %w", err)
	}
	if err := flush(); err != nil {
		return dropped, fmt.Errorf("redis cache delete: %w", err)
	}
	return dropped, nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	_, err := r.DeletePattern(ctx, keyPrefix+":*")
	return err
}
