package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictFunc is called, outside the cache lock, for every entry that leaves the
// cache through capacity, expiry or Delete.
type EvictFunc[T any] func(key string, value T)

// LRUCache is a size bounded cache with a sliding TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	onEvict EvictFunc[T]
	now     func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries, each living
// ttl after its last access. A non-positive ttl disables expiry.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// OnEvict registers the eviction hook. Set it before first use.
func (c *LRUCache[T]) OnEvict(fn EvictFunc[T]) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

func (c *LRUCache[T]) expired(item *cacheItem[T], now time.Time) bool {
	return c.ttl > 0 && now.After(item.expiresAt)
}

func (c *LRUCache[T]) touch(item *cacheItem[T], now time.Time) {
	item.expiresAt = now.Add(c.ttl)
}

// Get returns a live entry and refreshes its TTL.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	var zero T
	var evicted []*cacheItem[T]
	defer func() { c.notify(evicted) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if c.expired(item, now) {
		evicted = append(evicted, c.removeElement(elem))
		return zero, false
	}
	c.touch(item, now)
	c.lru.MoveToFront(elem)
	return item.data, true
}

// GetOrCreate returns the live entry for key, creating it with create when it
// is missing. The bool reports whether the entry already existed.
func (c *LRUCache[T]) GetOrCreate(key string, create func() T) (T, bool) {
	var evicted []*cacheItem[T]
	defer func() { c.notify(evicted) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*cacheItem[T])
		if !c.expired(item, now) {
			c.touch(item, now)
			c.lru.MoveToFront(elem)
			return item.data, true
		}
		evicted = append(evicted, c.removeElement(elem))
	}

	item := &cacheItem[T]{key: key, data: create()}
	c.touch(item, now)
	c.items[key] = c.lru.PushFront(item)
	evicted = append(evicted, c.trim()...)
	return item.data, false
}

// Set stores a value, replacing any previous one without calling the hook.
func (c *LRUCache[T]) Set(key string, data T) {
	var evicted []*cacheItem[T]
	defer func() { c.notify(evicted) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{key: key, data: data}
	c.touch(item, c.now())
	if elem, ok := c.items[key]; ok {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}
	c.items[key] = c.lru.PushFront(item)
	evicted = c.trim()
}

// Delete removes a key and calls the eviction hook for it.
func (c *LRUCache[T]) Delete(key string) {
	var evicted []*cacheItem[T]
	defer func() { c.notify(evicted) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		evicted = append(evicted, c.removeElement(elem))
	}
}

// Each calls fn for every live entry, most recently used first. fn runs
// without the lock held.
func (c *LRUCache[T]) Each(fn func(key string, value T)) {
	type kv struct {
		key  string
		data T
	}
	c.mu.Lock()
	now := c.now()
	entries := make([]kv, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if !c.expired(item, now) {
			entries = append(entries, kv{item.key, item.data})
		}
	}
	c.mu.Unlock()

	for _, e := range entries {
		fn(e.key, e.data)
	}
}

// CleanExpired removes all expired entries and returns how many it removed.
func (c *LRUCache[T]) CleanExpired() int {
	var evicted []*cacheItem[T]
	defer func() { c.notify(evicted) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var stale []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*cacheItem[T]), now) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		evicted = append(evicted, c.removeElement(elem))
	}
	return len(stale)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) trim() []*cacheItem[T] {
	var out []*cacheItem[T]
	for c.lru.Len() > c.maxSize {
		out = append(out, c.removeElement(c.lru.Back()))
	}
	return out
}

func (c *LRUCache[T]) removeElement(elem *list.Element) *cacheItem[T] {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	return item
}

func (c *LRUCache[T]) notify(items []*cacheItem[T]) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	fn := c.onEvict
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, it := range items {
		fn(it.key, it.data)
	}
}
