// Package cache maps image fingerprints to previously computed detection
// results so repeated analysis of the same visual input is answered without
// recomputation.
package cache

import (
	"sync"

	"github.com/leafwise/leaf-analyzer/pkg/types"
)

// ResultCache is a fingerprint → DetectionResult map owned by a single
// service instance. Both prediction paths are pure functions of their input,
// so concurrent misses on the same fingerprint may race on insertion without
// harm: last write wins with a value-identical result.
type ResultCache struct {
	mu       sync.RWMutex
	entries  map[string]types.DetectionResult
	order    []string // insertion order, used only when capacity > 0
	capacity int
	hits     uint64
	misses   uint64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// New creates an unbounded cache. Entries live until Clear.
func New() *ResultCache {
	return NewWithCapacity(0)
}

// NewWithCapacity creates a cache holding at most capacity entries; the
// oldest insertion is evicted first. capacity <= 0 means unbounded.
func NewWithCapacity(capacity int) *ResultCache {
	return &ResultCache{
		entries:  make(map[string]types.DetectionResult),
		capacity: capacity,
	}
}

// Get returns the cached result for a fingerprint, if present.
func (c *ResultCache) Get(fp string) (types.DetectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.entries[fp]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return res, ok
}

// Put stores a result under a fingerprint. Re-inserting an existing
// fingerprint overwrites in place and does not grow the cache.
func (c *ResultCache) Put(fp string, res types.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; !exists {
		if c.capacity > 0 && len(c.entries) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		if c.capacity > 0 {
			c.order = append(c.order, fp)
		}
	}
	c.entries[fp] = res
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Clear drops all entries. Called on service disposal.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]types.DetectionResult)
	c.order = nil
}
