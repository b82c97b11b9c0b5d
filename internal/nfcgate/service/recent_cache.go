package service

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const DefaultRecentCacheSize = 100

// RecentCache holds the newest journal entries for dashboard reads. It is a
// derived view of the journal store and can be rebuilt from it at any time
// with Merge.
//
// Entries are kept in id order regardless of the order they arrive in:
// observers for concurrent scans can run in either order even though the
// journal numbered them strictly.
type RecentCache struct {
	mu       sync.RWMutex
	capacity int
	events   []types.AccessEvent // ascending by id
	loaded   bool
}

func NewRecentCache(capacity int) *RecentCache {
	if capacity <= 0 {
		capacity = DefaultRecentCacheSize
	}
	return &RecentCache{
		capacity: capacity,
		events:   make([]types.AccessEvent, 0, capacity),
	}
}

func (c *RecentCache) Capacity() int { return c.capacity }

// Loaded reports whether the cache has been synced from the store at least
// once. An unloaded cache must not answer reads.
func (c *RecentCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *RecentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Add inserts ev at its id position. An id already held is ignored, as is an
// entry older than everything in a full cache.
func (c *RecentCache) Add(ev types.AccessEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(ev)
}

// Recent returns up to n entries, newest first. n <= 0 means all.
func (c *RecentCache) Recent(n int) []types.AccessEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || n > len(c.events) {
		n = len(c.events)
	}
	out := make([]types.AccessEvent, 0, n)
	for i := len(c.events) - 1; i >= len(c.events)-n; i-- {
		out = append(out, c.events[i])
	}
	return out
}

// Merge folds a store snapshot, given newest first as returned by
// JournalStore.RecentEvents, into the cache and marks it loaded. Entries
// added after the snapshot was read are kept.
func (c *RecentCache) Merge(newestFirst []types.AccessEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range newestFirst {
		c.insertLocked(ev)
	}
	c.loaded = true
}

func (c *RecentCache) insertLocked(ev types.AccessEvent) {
	i, found := slices.BinarySearchFunc(c.events, ev.ID, func(e types.AccessEvent, id int64) int {
		return cmp.Compare(e.ID, id)
	})
	if found {
		return
	}
	if len(c.events) == c.capacity {
		if i == 0 {
			return
		}
		c.events = slices.Delete(c.events, 0, 1)
		i--
	}
	c.events = slices.Insert(c.events, i, ev)
}

// ScanProcessed implements ScanObserver.
func (c *RecentCache) ScanProcessed(_ context.Context, _ types.Outcome, entry *types.AccessEvent) {
	if entry != nil {
		c.Add(*entry)
	}
}

// ScanFailed implements ScanObserver.
func (c *RecentCache) ScanFailed(context.Context, string, error) {}
