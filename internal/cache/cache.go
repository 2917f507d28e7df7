package cache

import (
	"fmt"
	"sync"
	"time"
)

// Config bounds the cache. MaxEntries must be positive; DefaultTTL applies
// to Set calls that do not name their own TTL.
type Config struct {
	MaxEntries int
	DefaultTTL time.Duration
}

// Stats counts cache traffic since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

type entry struct {
	value   interface{}
	expires time.Time
}

// Cache is a bounded TTL cache for analysis artifacts keyed by string,
// typically "symbol:timeframe:kind". Safe for concurrent use. When full it
// evicts expired entries first, then the entries closest to expiry.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]entry
	stats   Stats
	now     func() time.Time
}

// New constructs a bounded cache.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("cache default TTL must be positive, got %s", cfg.DefaultTTL)
	}
	return &Cache{
		cfg:     cfg,
		entries: make(map[string]entry, cfg.MaxEntries),
		now:     time.Now,
	}, nil
}

// Get returns the cached value if present and not expired. An expired entry
// is removed on read and counts as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetTTL(key, value, c.cfg.DefaultTTL)
}

// SetTTL stores a value with an explicit TTL, evicting as needed to stay
// within capacity.
func (c *Cache) SetTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
}

// Delete removes a key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, expired ones included until
// they are read or evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the traffic counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// evictLocked frees room for one insert: drop everything already expired,
// and if the cache is still full, drop entries closest to expiry until one
// slot is free. Caller holds the lock.
func (c *Cache) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			c.stats.Evictions++
		}
	}
	for len(c.entries) >= c.cfg.MaxEntries {
		var victim string
		var soonest time.Time
		for k, e := range c.entries {
			if victim == "" || e.expires.Before(soonest) {
				victim, soonest = k, e.expires
			}
		}
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}
