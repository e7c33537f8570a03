package pageview

import (
	"container/list"
	"sync"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/internal/mmap"
)

// dayKey identifies one cached mapping. The article count is part of the
// key so that a corpus swap never serves a vector sized for the previous
// snapshot; superseded entries simply age out.
type dayKey struct {
	wiki string
	date core.Date
	n    int
}

// dayEntry is one mapped day vector. Entries are refcounted: eviction
// marks the entry dead but the mapping is only unmapped once the last
// borrowed view is closed.
type dayEntry struct {
	mapping *mmap.Mapping
	payload []byte

	refs    int
	evicted bool
}

func (e *dayEntry) unmap() {
	if e.mapping != nil {
		_ = e.mapping.Close()
		e.mapping = nil
		e.payload = nil
	}
}

// dayCache is a bounded LRU of mapped day files guarded by one mutex.
type dayCache struct {
	mu        sync.Mutex
	capacity  int
	items     map[dayKey]*list.Element
	evictList *list.List
}

type cacheItem struct {
	key   dayKey
	entry *dayEntry
}

func newDayCache(capacity int) *dayCache {
	return &dayCache{
		capacity:  capacity,
		items:     make(map[dayKey]*list.Element),
		evictList: list.New(),
	}
}

// acquire returns the cached entry with its refcount bumped.
func (c *dayCache) acquire(key dayKey) (*dayEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		return nil, false
	}

	c.evictList.MoveToFront(element)
	entry := element.Value.(*cacheItem).entry
	entry.refs++

	return entry, true
}

// insert caches entry under key and returns it with its refcount bumped.
// When another goroutine won the race the existing entry is returned
// instead and the caller's mapping is unmapped.
func (c *dayCache) insert(key dayKey, entry *dayEntry) *dayEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		entry.unmap()
		c.evictList.MoveToFront(element)
		existing := element.Value.(*cacheItem).entry
		existing.refs++
		return existing
	}

	element := c.evictList.PushFront(&cacheItem{key: key, entry: entry})
	c.items[key] = element
	entry.refs++

	for c.evictList.Len() > c.capacity {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}

	return entry
}

// release drops one borrow; the last release of an evicted entry unmaps.
func (c *dayCache) release(entry *dayEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.refs--
	if entry.evicted && entry.refs == 0 {
		entry.unmap()
	}
}

// purge evicts everything; borrowed entries unmap on their last release.
func (c *dayCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		element := c.evictList.Back()
		if element == nil {
			return
		}
		c.removeElement(element)
	}
}

func (c *dayCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *dayCache) removeElement(element *list.Element) {
	c.evictList.Remove(element)
	item := element.Value.(*cacheItem)
	delete(c.items, item.key)

	item.entry.evicted = true
	if item.entry.refs == 0 {
		item.entry.unmap()
	}
}
