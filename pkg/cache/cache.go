// Package cache is a small key-scoped TTL cache.
//
// An entry is valid only while now - storedAt < ttl. Expired entries are never
// returned and are evicted by the read that finds them; there is no background
// sweeper. The cache is safe for concurrent use and is last-write-wins.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value and the time it was stored.
type Entry struct {
	Value    string
	StoredAt time.Time
}

// TTLCache holds string values for a fixed time-to-live.
type TTLCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock replaces time.Now, mainly so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// New creates a TTLCache whose entries live for ttl.
func New(ttl time.Duration, opts ...Option) *TTLCache {
	c := &TTLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// TTL returns the configured time-to-live.
func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it has not expired. An expired
// entry is removed before Get reports a miss.
func (c *TTLCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}

	if c.now().Sub(entry.StoredAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}

	return entry.Value, true
}

// Set stores value under key stamped with the current time, replacing any
// previous entry.
func (c *TTLCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{Value: value, StoredAt: c.now()}
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of stored entries, including expired ones that
// have not been read since they expired.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
