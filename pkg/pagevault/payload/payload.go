// Package payload keeps the decoded HTML of recently viewed snapshots in a
// small fixed-capacity LRU cache. Full documents can be large, so the cache
// deliberately holds only a handful of entries; everything else is re-read
// from disk on demand, with concurrent reads for the same id coalesced
// into one.
package payload

import (
	"container/list"
	"context"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jamesainslie/pagevault/pkg/pagevault/config"
	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

// Cache is a bounded LRU over snapshot id to decoded HTML.
type Cache struct {
	capacity int
	logger   *logging.Logger

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element

	// inflight counts loads currently executing per id, and epochs
	// versions invalidations against them. A load that began before an
	// invalidation of its id carries a stale epoch and is not admitted
	// when it completes.
	inflight map[string]int
	epochs   map[string]uint64

	loads singleflight.Group

	// readFile is swapped out in tests.
	readFile func(string) ([]byte, error)
}

type cacheItem struct {
	id   string
	html string
}

// NewCache creates a cache holding at most capacity entries. A
// non-positive capacity uses the configured default.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = config.DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		logger:   logging.Get("payload"),
		order:    list.New(),
		items:    make(map[string]*list.Element),
		inflight: make(map[string]int),
		epochs:   make(map[string]uint64),
		readFile: os.ReadFile,
	}
}

// Capacity returns the fixed entry bound. Warm-up policies share this so
// they never prime more than the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Get returns the cached HTML for id, refreshing its recency. No I/O.
func (c *Cache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheItem).html, true
}

// Put inserts or refreshes an entry, evicting the least-recently-used
// entry when the count exceeds capacity.
func (c *Cache) Put(id, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(id, html)
}

func (c *Cache) putLocked(id, html string) {
	if elem, ok := c.items[id]; ok {
		elem.Value.(*cacheItem).html = html
		c.order.MoveToFront(elem)
		return
	}
	c.items[id] = c.order.PushFront(&cacheItem{id: id, html: html})
	for len(c.items) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		evicted := c.order.Remove(oldest).(*cacheItem)
		delete(c.items, evicted.id)
		c.logger.Debug("evicted payload", "id", evicted.id)
	}
}

// Preload returns the entry's HTML, reading its payload file on a cache
// miss. Concurrent preloads for the same id share one disk read. A read
// failure (or an entry with no payload file) returns ok=false rather than
// an error; replay of a missing snapshot is a display concern, not a
// caller fault.
func (c *Cache) Preload(ctx context.Context, entry *types.SnapshotEntry) (string, bool) {
	if entry == nil || entry.FilePath == nil || *entry.FilePath == "" {
		return "", false
	}
	if html, ok := c.Get(entry.ID); ok {
		return html, true
	}

	path := *entry.FilePath
	id := entry.ID

	c.mu.Lock()
	epoch := c.epochs[id]
	c.inflight[id]++
	c.mu.Unlock()

	v, err, _ := c.loads.Do(id, func() (any, error) {
		data, err := c.readFile(path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	})

	c.mu.Lock()
	admit := err == nil && c.epochs[id] == epoch
	c.inflight[id]--
	if c.inflight[id] == 0 {
		delete(c.inflight, id)
		delete(c.epochs, id)
	}
	if admit {
		c.putLocked(id, v.(string))
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("payload preload failed", "id", id, "error", err)
		return "", false
	}
	if !admit || ctx.Err() != nil {
		return "", false
	}
	return v.(string), true
}

// Invalidate drops the cached and in-flight state for id. Used when a
// snapshot is removed.
func (c *Cache) Invalidate(id string) {
	c.loads.Forget(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] > 0 {
		c.epochs[id]++
	}
	if elem, ok := c.items[id]; ok {
		c.order.Remove(elem)
		delete(c.items, id)
	}
}

// InvalidateAll drops every cached entry and stales every in-flight load.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.inflight {
		c.loads.Forget(id)
		c.epochs[id]++
	}
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len reports the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// WarmUp primes the cache with up to Capacity() offline entries, intended
// for the most recently listed snapshots. Read failures are skipped.
func (c *Cache) WarmUp(ctx context.Context, entries []types.SnapshotEntry) {
	warmed := 0
	for i := range entries {
		if warmed >= c.capacity {
			return
		}
		if ctx.Err() != nil {
			return
		}
		e := entries[i]
		if e.Mode != types.ModeOffline {
			continue
		}
		if _, ok := c.Preload(ctx, &e); ok {
			warmed++
		}
	}
}
