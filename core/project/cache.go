package project

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of project contexts kept in memory.
const DefaultCacheSize = 32

// Cache builds project contexts on first use and keeps the most recently
// used ones. Contexts are immutable, so a cached value can be shared by any
// number of concurrent runs.
type Cache struct {
	settings SettingsSource
	names    NamesSource
	log      *slog.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, *Context]
}

// NewCache returns a cache holding at most size contexts. A size below one
// uses DefaultCacheSize.
func NewCache(size int, settings SettingsSource, names NamesSource, log *slog.Logger) (*Cache, error) {
	if size < 1 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Context](size)
	if err != nil {
		return nil, err
	}
	return &Cache{settings: settings, names: names, log: log, entries: entries}, nil
}

// Get returns the context for a project, building it if needed.
func (c *Cache) Get(name string) (*Context, error) {
	if ctx, ok := c.entries.Get(name); ok {
		return ctx, nil
	}

	// Serialise builds so two callers do not compile the same project twice.
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx, ok := c.entries.Get(name); ok {
		return ctx, nil
	}
	ctx, err := Build(name, c.settings, c.names, c.log)
	if err != nil {
		return nil, err
	}
	c.entries.Add(name, ctx)
	return ctx, nil
}

// Invalidate drops a project's context so the next Get rebuilds it.
func (c *Cache) Invalidate(name string) {
	c.entries.Remove(name)
}

// Len returns the number of cached contexts.
func (c *Cache) Len() int {
	return c.entries.Len()
}
