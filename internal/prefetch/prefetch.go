// File: internal/prefetch/prefetch.go
package prefetch

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptoterm/internal/fetch"
)

// Entry is one warmed payload with the time it was stored.
type Entry struct {
	Value    json.RawMessage
	StoredAt time.Time
}

// Cache is the shared warm-cache namespace prefetched payloads land in. It is
// deliberately separate from any sync client's own cached resource: entries
// here are advisory and may be superseded at any time.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

func (c *Cache) Put(key string, value json.RawMessage, at time.Time) {
	c.mu.Lock()
	c.entries[key] = Entry{Value: value, StoredAt: at}
	c.mu.Unlock()
}

func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Coordinator fires best-effort warm-up fetches for auxiliary resources.
// Failures are logged and swallowed; a warm-up never blocks or fails the
// primary resource's availability.
type Coordinator struct {
	fetcher fetch.Fetcher
	cache   *Cache
	limit   int
	now     func() time.Time
}

func New(f fetch.Fetcher, cache *Cache, limit int) *Coordinator {
	if limit <= 0 {
		limit = 5
	}
	return &Coordinator{fetcher: f, cache: cache, limit: limit, now: time.Now}
}

// Warm fetches each key once with bounded parallelism and stores successes in
// the shared cache. It returns once all fetches have settled.
func (co *Coordinator) Warm(ctx context.Context, keys []string) {
	g := new(errgroup.Group)
	g.SetLimit(co.limit)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			payload, err := co.fetcher.Fetch(ctx, key)
			if err != nil {
				log.Printf("[prefetch] %s: %v", key, err)
				return nil
			}
			co.cache.Put(key, payload, co.now())
			return nil
		})
	}
	_ = g.Wait()
}
