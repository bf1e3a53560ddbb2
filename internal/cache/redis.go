// v0
// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Commands is the subset of redis.Cmdable used by Redis.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores JSON encoded values in Redis under a namespace prefix so
// several instances share fetched readings.
type Redis[T any] struct {
	client    Commands
	namespace string
	ttl       time.Duration
	obs       Observer
}

func NewRedis[T any](client Commands, namespace string, ttl time.Duration, obs Observer) *Redis[T] {
	return &Redis[T]{client: client, namespace: namespace, ttl: ttl, obs: obs}
}

func (r *Redis[T]) key(k string) string {
	return r.namespace + ":" + k
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		if r.obs != nil {
			r.obs.CacheMiss()
		}
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		// A value written by an incompatible build is treated as a miss.
		if r.obs != nil {
			r.obs.CacheMiss()
		}
		return zero, false, nil
	}
	if r.obs != nil {
		r.obs.CacheHit()
	}
	return v, true, nil
}

func (r *Redis[T]) Set(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis[T]) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
