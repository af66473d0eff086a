// cache.go - Content-hash keyed cache of prior extraction results

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bosocmputer/receipt_vision_ocr/internal/receipt"
)

// ResultCache stores extraction results keyed by the content hash of the
// prepared image bytes. Implementations must be safe for concurrent use.
type ResultCache interface {
	Get(ctx context.Context, key string) (*receipt.ExtractionResult, bool)
	Set(ctx context.Context, key string, result *receipt.ExtractionResult)
}

type memoryEntry struct {
	result   *receipt.ExtractionResult
	storedAt time.Time
}

// MemoryCache is the default in-process ResultCache with lazy TTL
// eviction on read plus a size cap enforced on write.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a memory cache. ttl <= 0 falls back to 3600s.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached result when present and not expired. Expired
// entries are removed lazily here.
func (c *MemoryCache) Get(_ context.Context, key string) (*receipt.ExtractionResult, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have refreshed it
		if cur, ok := c.entries[key]; ok && c.now().Sub(cur.storedAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.result, true
}

// Set stores a result. When the store is full, expired entries are purged
// first; if still full, the oldest entry is evicted.
func (c *MemoryCache) Set(_ context.Context, key string, result *receipt.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if len(c.entries) >= c.maxEntries {
		for k, e := range c.entries {
			if now.Sub(e.storedAt) > c.ttl {
				delete(c.entries, k)
			}
		}
	}

	if len(c.entries) >= c.maxEntries {
		oldestKey := ""
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.storedAt
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = memoryEntry{result: result, storedAt: now}
}

// Len returns the number of live entries (expired ones included until read)
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
