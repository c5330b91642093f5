package market

import (
	"sync"
	"time"
)

// PriceCache holds the latest full batch of price snapshots.
// Update replaces the whole table at once so readers never observe
// a half-applied batch.
type PriceCache struct {
	mu        sync.RWMutex
	snapshots map[string]PriceSnapshot
	updatedAt time.Time
	now       func() time.Time
}

// NewPriceCache creates an empty price cache
func NewPriceCache() *PriceCache {
	return NewPriceCacheWithClock(time.Now)
}

// NewPriceCacheWithClock creates a cache that reads the current time
// from now instead of the wall clock
func NewPriceCacheWithClock(now func() time.Time) *PriceCache {
	return &PriceCache{
		snapshots: make(map[string]PriceSnapshot),
		now:       now,
	}
}

// Update replaces the cached table with a new batch
func (c *PriceCache) Update(batch []PriceSnapshot) {
	next := make(map[string]PriceSnapshot, len(batch))
	for _, snap := range batch {
		next[snap.Symbol] = snap
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = next
	c.updatedAt = c.now()
}

// Get returns the snapshot for one symbol
func (c *PriceCache) Get(symbol string) (PriceSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[symbol]
	return snap, ok
}

// All returns a copy of every cached snapshot
func (c *PriceCache) All() []PriceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PriceSnapshot, 0, len(c.snapshots))
	for _, snap := range c.snapshots {
		out = append(out, snap)
	}
	return out
}

// Age returns how long ago the table was last replaced
func (c *PriceCache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.updatedAt.IsZero() {
		return time.Duration(1 << 62)
	}
	return c.now().Sub(c.updatedAt)
}

// IsStale reports whether the whole table is older than maxAge
func (c *PriceCache) IsStale(maxAge time.Duration) bool {
	return c.Age() > maxAge
}

// UpdatedAt returns the time of the last full replace
func (c *PriceCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Len returns the number of cached snapshots
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}
