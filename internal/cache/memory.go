package cache

import (
	"context"
	"sync"
	"time"

	"pricescan/internal/models"
)

type memoryEntry struct {
	price     float64
	source    models.Source
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache with the same contract as
// RedisCache. Used when no Redis is configured, and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, token, network string, ts int64) (float64, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[Key(token, network, ts)]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return 0, false, nil
	}
	return e.price, true, nil
}

func (c *MemoryCache) Set(_ context.Context, token, network string, ts int64, price float64, source models.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(token, network, ts)] = memoryEntry{
		price:     price,
		source:    source,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}
