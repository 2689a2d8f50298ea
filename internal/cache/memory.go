package cache

import (
	"bytes"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps feed pages and search results in process.
// Values are copied in and out, so callers may modify what they get back.
type MemoryCache struct {
	items     *gocache.Cache
	evictions atomic.Int64
}

// NewMemoryCache creates a memory cache. Expired entries are swept every
// cleanupInterval; zero disables the sweep and expiry is checked on read only.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{items: gocache.New(defaultTTL, cleanupInterval)}
	c.items.OnEvicted(func(string, any) { c.evictions.Add(1) })
	return c
}

// Get returns a copy of the cached value
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, found := c.items.Get(key)
	if !found {
		return nil, false
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Set stores a copy of value. ttl 0 uses the cache default, a negative ttl never expires.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	switch {
	case ttl == 0:
		ttl = gocache.DefaultExpiration
	case ttl < 0:
		ttl = gocache.NoExpiration
	}
	c.items.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len counts entries, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}

// Evictions counts entries removed by expiry sweeps or Delete
func (c *MemoryCache) Evictions() int64 {
	return c.evictions.Load()
}
