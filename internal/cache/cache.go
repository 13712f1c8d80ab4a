// Package cache holds loaded datasets keyed by content fingerprint.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// entry represents a cached item
type entry[V any] struct {
	key     string
	item    V
	element *list.Element // pointer to its LRU position
}

// Cache is an LRU cache with a limit on the number of entries.
// The zero value is not usable; use New or NewWithClock.
type Cache[V any] struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	capacity int // max entries, <= 0 means unbounded

	data map[string]*entry[V]
	lru  *list.List // most recently used at front
}

// New creates an LRU cache holding at most capacity entries.
// capacity <= 0 means unbounded.
func New[V any](capacity int) *Cache[V] {
	return NewWithClock[V](clockwork.NewRealClock(), capacity)
}

// NewWithClock is New with an injected time source.
func NewWithClock[V any](clock clockwork.Clock, capacity int) *Cache[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache[V]{
		clock:    clock,
		capacity: capacity,
		data:     make(map[string]*entry[V]),
		lru:      list.New(),
	}
}

// Put inserts or replaces the item stored under key and returns the time
// it was recorded.
func (c *Cache[V]) Put(key string, item V) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if e, ok := c.data[key]; ok {
		e.item = item
		c.lru.MoveToFront(e.element)
		return now
	}

	e := &entry[V]{key: key, item: item}
	e.element = c.lru.PushFront(key) // list holds only the key
	c.data[key] = e

	if c.capacity > 0 {
		for len(c.data) > c.capacity {
			c.evictOldest()
		}
	}
	return now
}

// Get retrieves an item and marks it as recently used
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(e.element)
	return e.item, true
}

// Invalidate drops key. It reports whether an entry was removed.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return false
	}
	c.lru.Remove(e.element)
	delete(c.data, key)
	return true
}

// Clear empties the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*entry[V])
	c.lru.Init()
}

// evictOldest removes the least recently used entry
func (c *Cache[V]) evictOldest() {
	oldest := c.lru.Back()
	if oldest == nil {
		return
	}
	delete(c.data, oldest.Value.(string))
	c.lru.Remove(oldest)
}

// Len returns number of items currently in cache
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
