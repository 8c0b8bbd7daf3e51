package pool

import (
	"context"
	"sync"
	"time"

	"hypothesis-rating/internal/metrics"
	"hypothesis-rating/internal/models"
)

// DefaultCacheTTL bounds how long a cached pool is served before the store
// is read again
const DefaultCacheTTL = 30 * time.Second

// Reader loads the stored pool of a topic ordered by rank
type Reader interface {
	ListByTopic(ctx context.Context, topicName string) ([]models.PoolEntry, error)
}

type cachedPool struct {
	entries  []models.PoolEntry
	loadedAt time.Time
}

// Cache is a read-through cache of pool rows keyed by topic. Entries expire
// after ttl, so translations, rebuilds and repairs written by another
// process become visible without a restart. Empty results are not cached.
// A ttl <= 0 disables caching.
type Cache struct {
	mu      sync.RWMutex
	reader  Reader
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedPool
}

// NewCache creates an empty cache in front of reader
func NewCache(reader Reader, ttl time.Duration) *Cache {
	return &Cache{
		reader:  reader,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedPool),
	}
}

// Get returns the pool of topicName. Callers must not modify the result.
func (c *Cache) Get(ctx context.Context, topicName string) ([]models.PoolEntry, error) {
	c.mu.RLock()
	cached, ok := c.entries[topicName]
	c.mu.RUnlock()
	ok = ok && c.now().Sub(cached.loadedAt) < c.ttl
	metrics.RecordCacheLookup(ok)
	if ok {
		return cached.entries, nil
	}

	entries, err := c.reader.ListByTopic(ctx, topicName)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 && c.ttl > 0 {
		c.mu.Lock()
		c.entries[topicName] = cachedPool{entries: entries, loadedAt: c.now()}
		c.mu.Unlock()
	}
	return entries, nil
}

// Invalidate drops the cached pool of one topic
func (c *Cache) Invalidate(topicName string) {
	c.mu.Lock()
	delete(c.entries, topicName)
	c.mu.Unlock()
}

// InvalidateAll empties the cache
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cachedPool)
	c.mu.Unlock()
}
