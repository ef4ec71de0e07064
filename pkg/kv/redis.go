package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client used by Redis.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a Store implementation backed by a Redis server. Expiry uses
// Redis key TTLs. The client is owned by the caller; Close is a no-op.
type Redis struct {
	client RedisClient
	opts   *Options
}

// NewRedis wraps a Redis client as a Store.
func NewRedis(client RedisClient, opts *Options) *Redis {
	return &Redis{client: client, opts: opts}
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, error) {
	val, err := r.client.Get(ctx, string(r.opts.encode(key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: redis get: %w", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, string(r.opts.encode(key)), value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, string(r.opts.encode(key))).Err(); err != nil {
		return fmt.Errorf("kv: redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return nil }
