package dictionary

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// CacheMetrics holds cache statistics for observability.
type CacheMetrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Evictions atomic.Int64
}

// Cache is a byte-bounded LRU over loaded column dictionaries, keyed by
// dictionary file path. Repeated loads of the same table reuse parsed
// dictionaries instead of re-reading their logs.
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	metrics  CacheMetrics
}

type cacheEntry struct {
	key  string
	dict *ColumnDictionary
}

// NewCache creates a cache holding up to maxBytes of dictionary data.
// A non-positive limit disables caching entirely (Get always misses).
func NewCache(maxBytes int64) *Cache {
	return &Cache{
		maxBytes: maxBytes,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the cached dictionary for key, marking it recently used.
func (c *Cache) Get(key string) (*ColumnDictionary, bool) {
	if c == nil || c.maxBytes <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.metrics.Misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(el)
	c.metrics.Hits.Add(1)
	return el.Value.(*cacheEntry).dict, true
}

// Put stores a dictionary under key, replacing any previous entry and
// evicting least-recently-used entries past the byte limit. Dictionaries
// larger than the whole cache are not stored.
func (c *Cache) Put(key string, dict *ColumnDictionary) {
	if c == nil || c.maxBytes <= 0 || dict == nil {
		return
	}
	if dict.SizeBytes() > c.maxBytes {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		old := el.Value.(*cacheEntry)
		c.curBytes -= old.dict.SizeBytes()
		old.dict = dict
		c.curBytes += dict.SizeBytes()
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&cacheEntry{key: key, dict: dict})
		c.entries[key] = el
		c.curBytes += dict.SizeBytes()
	}

	for c.curBytes > c.maxBytes {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, entry.key)
		c.curBytes -= entry.dict.SizeBytes()
		c.metrics.Evictions.Add(1)
	}
}

// Invalidate drops the entry for key, if present.
func (c *Cache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.curBytes -= el.Value.(*cacheEntry).dict.SizeBytes()
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// SizeBytes returns the current cached byte total.
func (c *Cache) SizeBytes() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of cached dictionaries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Metrics returns hit, miss, and eviction counts.
func (c *Cache) Metrics() (hits, misses, evictions int64) {
	if c == nil {
		return 0, 0, 0
	}
	return c.metrics.Hits.Load(), c.metrics.Misses.Load(), c.metrics.Evictions.Load()
}
