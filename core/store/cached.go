package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached is a write-through LRU read cache in front of another PluginData.
// It assumes it is the only writer to the backing store.
type Cached struct {
	next    PluginData
	entries *lru.Cache[string, string]
}

// NewCached caches up to size values read from or written to next.
func NewCached(next PluginData, size int) (*Cached, error) {
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, entries: entries}, nil
}

func cacheKey(project, key string) string {
	return project + "\x00" + key
}

func (c *Cached) Get(ctx context.Context, project, key string) (string, bool, error) {
	if v, ok := c.entries.Get(cacheKey(project, key)); ok {
		return v, true, nil
	}
	v, ok, err := c.next.Get(ctx, project, key)
	if err != nil || !ok {
		return v, ok, err
	}
	c.entries.Add(cacheKey(project, key), v)
	return v, true, nil
}

func (c *Cached) Put(ctx context.Context, project, key, value string) error {
	if err := c.next.Put(ctx, project, key, value); err != nil {
		c.entries.Remove(cacheKey(project, key))
		return err
	}
	c.entries.Add(cacheKey(project, key), value)
	return nil
}
