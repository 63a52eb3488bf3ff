package qapi

import (
	"sync"

	"github.com/qapi-go/client/internal/metadata"
)

// tableCache maps specVersion to a decoded PalletTable, plus a
// distinguished "latest" slot populated at connect. It uses
// double-checked locking to minimize lock contention on the common path
// (a spec version already seen).
type tableCache struct {
	mu     sync.RWMutex
	tables map[uint32]*metadata.PalletTable
	latest *metadata.PalletTable
}

func newTableCache() *tableCache {
	return &tableCache{tables: make(map[uint32]*metadata.PalletTable)}
}

// Get returns the cached table for specVersion, or nil if not yet seen.
func (c *tableCache) Get(specVersion uint32) *metadata.PalletTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tables[specVersion]
}

// GetOrSet returns the existing table for specVersion if present;
// otherwise it stores and returns build(). build runs under the write lock
// and only after a second check finds no entry, so it is called at most
// once per stored entry; callers should keep build fast, since it blocks
// every other cache access while it runs.
func (c *tableCache) GetOrSet(specVersion uint32, build func() *metadata.PalletTable) *metadata.PalletTable {
	c.mu.RLock()
	if t, ok := c.tables[specVersion]; ok {
		c.mu.RUnlock()
		return t
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[specVersion]; ok {
		return t
	}
	t := build()
	c.tables[specVersion] = t
	return t
}

// SetLatest installs t as both the latest table and the cached entry for
// specVersion, per connect()'s override-table adoption step.
func (c *tableCache) SetLatest(specVersion uint32, t *metadata.PalletTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = t
	c.tables[specVersion] = t
}

// Latest returns the most recently installed table, or nil if connect has
// not yet established one.
func (c *tableCache) Latest() *metadata.PalletTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
