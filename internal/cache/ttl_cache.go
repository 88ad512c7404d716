// Package cache holds listings that are expensive to fetch and may be
// served slightly stale.
package cache

import (
	"context"
	"sync"
	"time"
)

// Loader fetches the full contents of a cache.
type Loader[K comparable, V any] func(ctx context.Context) (map[K]V, error)

// TTLCache caches the whole result of a Loader. A single timestamp covers
// every entry: once the TTL passes, the next read reloads everything.
// Concurrent reads during a reload wait for that one load.
type TTLCache[K comparable, V any] struct {
	mu     sync.Mutex
	data   map[K]V
	loaded time.Time
	ttl    time.Duration
	load   Loader[K, V]
	now    func() time.Time
}

// New creates a cache that starts expired and fills itself from load.
func New[K comparable, V any](ttl time.Duration, load Loader[K, V]) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data: make(map[K]V),
		ttl:  ttl,
		load: load,
		now:  time.Now,
	}
}

// expiredLocked MUST be called with mu held.
func (c *TTLCache[K, V]) expiredLocked() bool {
	return c.loaded.IsZero() || c.now().Sub(c.loaded) >= c.ttl
}

func (c *TTLCache[K, V]) refreshLocked(ctx context.Context) error {
	if !c.expiredLocked() {
		return nil
	}
	data, err := c.load(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		data = make(map[K]V)
	}
	c.data = data
	c.loaded = c.now()
	return nil
}

// All returns a copy of every entry, reloading first if expired.
func (c *TTLCache[K, V]) All(ctx context.Context) (map[K]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		return nil, err
	}
	result := make(map[K]V, len(c.data))
	for k, v := range c.data {
		result[k] = v
	}
	return result, nil
}

// Get returns one entry, reloading first if expired.
func (c *TTLCache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		var zero V
		return zero, false, err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

// Set updates one entry after a write to the backing source. It does not
// extend the TTL; an expired cache ignores the write and reloads later.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.expiredLocked() {
		c.data[key] = value
	}
}

// Delete drops one entry after a delete in the backing source.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Invalidate forces the next read to reload.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]V)
	c.loaded = time.Time{}
}

// Len returns the number of entries held, without checking expiry.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
