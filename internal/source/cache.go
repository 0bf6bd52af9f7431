package source

import (
	"context"
	"image"
	"sync"
)

// Cache memoizes a Resolver. It is safe for concurrent use; the batch
// workers share one Cache so each source is decoded once. Concurrent misses
// for the same source wait on the load already in flight.
type Cache struct {
	mu    sync.Mutex
	items map[string]*cacheEntry
	next  Resolver
}

type cacheEntry struct {
	done     chan struct{}
	img      *image.RGBA
	err      error
	canceled bool
}

// NewCache wraps next. A nil next uses Loader.
func NewCache(next Resolver) *Cache {
	if next == nil {
		next = Loader{}
	}
	return &Cache{items: make(map[string]*cacheEntry), next: next}
}

// Resolve returns the cached result for src, decoding on first use. Failures
// are cached too, except context cancellation. The returned image is shared
// and must not be modified.
func (c *Cache) Resolve(ctx context.Context, src string) (*image.RGBA, error) {
	for {
		c.mu.Lock()
		entry, ok := c.items[src]
		if !ok {
			entry = &cacheEntry{done: make(chan struct{})}
			c.items[src] = entry
			c.mu.Unlock()
			c.load(ctx, src, entry)
			return entry.img, entry.err
		}
		c.mu.Unlock()

		select {
		case <-entry.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !entry.canceled {
			return entry.img, entry.err
		}
	}
}

// load fills entry and wakes its waiters. A load cut short by its own
// context is forgotten so the next caller starts over.
func (c *Cache) load(ctx context.Context, src string, entry *cacheEntry) {
	defer close(entry.done)
	entry.img, entry.err = c.next.Resolve(ctx, src)
	if entry.err != nil && ctx.Err() != nil {
		entry.canceled = true
		c.mu.Lock()
		delete(c.items, src)
		c.mu.Unlock()
	}
}

// Len reports how many sources are cached or loading.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
