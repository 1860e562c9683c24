package flags

import (
	"sync"
	"time"
)

// Cache is a small TTL cache guarded by a RWMutex.
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]cacheEntry[V]
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{items: make(map[K]cacheEntry[V]), ttl: ttl, now: time.Now}
}

// Get returns the cached value if it has not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.items[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes one key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// InvalidateAll clears the cache.
func (c *Cache[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.items = make(map[K]cacheEntry[V])
	c.mu.Unlock()
}
