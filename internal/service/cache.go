package service

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// sweepThreshold is the entry count above which put drops expired entries.
const sweepThreshold = 1024

type cacheEntry struct {
	value   *ListResponse
	expires time.Time
}

// resultCache keeps list results for a TTL. Concurrent misses on the same key
// share a single execution.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
	now     func() time.Time
}

func newResultCache() *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *resultCache) get(key string) (*ListResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *resultCache) put(key string, v *ListResponse, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.entries) >= sweepThreshold {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = cacheEntry{value: v, expires: now.Add(ttl)}
}

// Do returns the cached value for key or runs fn and caches its result.
// The boolean reports a cache hit.
func (c *resultCache) Do(key string, ttl time.Duration, fn func() (*ListResponse, error)) (*ListResponse, bool, error) {
	if v, ok := c.get(key); ok {
		return v, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		c.put(key, res, ttl)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*ListResponse), false, nil
}
