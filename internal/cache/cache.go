// v2
// internal/cache/cache.go
package cache

import (
	"context"
	"sync"
	"time"
)

// Observer is notified of every lookup outcome.
type Observer interface {
	CacheHit()
	CacheMiss()
}

// Store is a keyed cache of T values.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, v T) error
	Delete(ctx context.Context, keys ...string) error
}

type entry[T any] struct {
	val T
	exp time.Time
}

// Cache is an in-process TTL cache.
type Cache[T any] struct {
	mu  sync.RWMutex
	m   map[string]entry[T]
	ttl time.Duration
	obs Observer
	now func() time.Time
}

func New[T any](ttl time.Duration, obs Observer) *Cache[T] {
	return &Cache[T]{m: make(map[string]entry[T]), ttl: ttl, obs: obs, now: time.Now}
}

func (c *Cache[T]) Get(_ context.Context, key string) (T, bool, error) {
	var zero T
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.exp) {
		if ok {
			c.mu.Lock()
			if cur, still := c.m[key]; still && c.now().After(cur.exp) {
				delete(c.m, key)
			}
			c.mu.Unlock()
		}
		if c.obs != nil {
			c.obs.CacheMiss()
		}
		return zero, false, nil
	}
	if c.obs != nil {
		c.obs.CacheHit()
	}
	return e.val, true, nil
}

func (c *Cache[T]) Set(_ context.Context, key string, v T) error {
	c.mu.Lock()
	c.m[key] = entry[T]{val: v, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Cache[T]) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}

// Len reports the number of entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Layered reads through a fast local store before a shared one and fills the
// local store on a shared hit. Writes and deletes go to both. The layers are
// expected to carry no observer; Obs sees one outcome per lookup.
type Layered[T any] struct {
	Local  Store[T]
	Shared Store[T]
	Obs    Observer
}

func (l Layered[T]) Get(ctx context.Context, key string) (T, bool, error) {
	if v, ok, err := l.Local.Get(ctx, key); err == nil && ok {
		l.observe(true)
		return v, true, nil
	}
	v, ok, err := l.Shared.Get(ctx, key)
	l.observe(err == nil && ok)
	if err != nil || !ok {
		return v, ok, err
	}
	_ = l.Local.Set(ctx, key, v)
	return v, true, nil
}

func (l Layered[T]) observe(hit bool) {
	if l.Obs == nil {
		return
	}
	if hit {
		l.Obs.CacheHit()
		return
	}
	l.Obs.CacheMiss()
}

func (l Layered[T]) Set(ctx context.Context, key string, v T) error {
	_ = l.Local.Set(ctx, key, v)
	return l.Shared.Set(ctx, key, v)
}

func (l Layered[T]) Delete(ctx context.Context, keys ...string) error {
	_ = l.Local.Delete(ctx, keys...)
	return l.Shared.Delete(ctx, keys...)
}
