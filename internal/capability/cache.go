package capability

import (
	"context"
	"fmt"
	"sync"
)

// DetectFunc computes capabilities for one connection, typically by
// combining an adapter's static table with runtime feature probes.
type DetectFunc func(ctx context.Context) (*Capabilities, error)

// Cache holds detected capabilities per connection. Detection runs
// once per connection ID and the result is shared by every request on
// that connection; Redetect drops the entry so the next read re-probes
// (used after a schema or extension change).
//
// The cache is explicitly constructed and injected, never a package
// global, so tests get isolated instances.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Capabilities
}

// NewCache creates an empty capability cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Capabilities)}
}

// Get returns the cached capabilities for a connection, running detect
// on first use. Concurrent first reads may race to detect; the first
// stored result wins and later ones are discarded, which is harmless
// because detection is idempotent.
func (c *Cache) Get(ctx context.Context, connID string, detect DetectFunc) (*Capabilities, error) {
	c.mu.RLock()
	caps, ok := c.entries[connID]
	c.mu.RUnlock()
	if ok {
		return caps, nil
	}

	caps, err := detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect capabilities for %s: %w", connID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[connID]; ok {
		return existing, nil
	}
	c.entries[connID] = caps
	return caps, nil
}

// Redetect invalidates the entry for a connection.
func (c *Cache) Redetect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, connID)
}
