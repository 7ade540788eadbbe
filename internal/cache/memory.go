package cache

import (
	"context"
	"sync"

	"github.com/nulpointcorp/ai-gateway/internal/providers"
)

// MemoryCache is the primary, in-process implementation of Cache. Expired
// entries are pruned lazily on lookup — there is no background sweep
// goroutine, since an expired entry only needs to be gone by the time it
// would otherwise be returned, not evicted proactively.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     int64 // seconds
}

// NewMemoryCache creates an empty MemoryCache with the given TTL in seconds.
func NewMemoryCache(ttlSeconds int64) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
		ttl:     ttlSeconds,
	}
}

func (c *MemoryCache) Lookup(_ context.Context, key string, now int64) (providers.CanonicalResponse, Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return providers.CanonicalResponse{}, Miss, nil
	}

	age := now - entry.TimestampSeconds
	if age >= c.ttl {
		delete(c.entries, key)
		return providers.CanonicalResponse{}, ExpiredMiss, nil
	}

	return entry.Response, Hit, nil
}

func (c *MemoryCache) Store(_ context.Context, key string, resp providers.CanonicalResponse, now int64) error {
	c.mu.Lock()
	c.entries[key] = Entry{Response: resp, TimestampSeconds: now}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Snapshot(_ context.Context) (map[string]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out, nil
}

// Len returns the number of entries currently held, including entries whose
// TTL has elapsed but have not yet been touched by a Lookup.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
