package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a size-bounded cache whose entries also expire after a TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
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

// WithClock replaces the time source. Intended for tests.
func (c *LRUCache[T]) WithClock(now func() time.Time) *LRUCache[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.lookup(key)
	if !ok {
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheItem[T]).data, true
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, data)
}

// SetIfAbsent stores data only when key is missing or expired and reports
// whether it did. Check and insert happen under one lock.
func (c *LRUCache[T]) SetIfAbsent(key string, data T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookup(key); ok {
		return false
	}
	c.set(key, data)
	return true
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// lookup returns a live element, dropping it if expired. Caller holds mu.
func (c *LRUCache[T]) lookup(key string) (*list.Element, bool) {
	elem, exists := c.items[key]
	if !exists {
		return nil, false
	}
	if c.now().After(elem.Value.(*cacheItem[T]).expiresAt) {
		c.removeElement(elem)
		return nil, false
	}
	return elem, true
}

func (c *LRUCache[T]) set(key string, data T) {
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
