package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds reports keyed by filter, bounded by size and TTL. Each entry
// is stamped with the ledger generation it was built from: a lookup for any
// other generation misses, and Invalidate drops everything older at once.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	gen     uint64
	items   map[string]*list.Element
	order   *list.List
	stats   Stats
}

type entry[T any] struct {
	key       string
	gen       uint64
	value     T
	expiresAt time.Time
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   uint64
	Misses uint64
	Stale  uint64 // misses caused by an entry from another generation
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value cached for key at generation gen.
func (c *LRUCache[T]) Get(key string, gen uint64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if e.gen != gen {
		c.stats.Misses++
		c.stats.Stale++
		if e.gen < gen {
			c.remove(elem)
		}
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.stats.Misses++
		c.remove(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++
	return e.value, true
}

// Set caches value for key at generation gen. Values built from a generation
// older than the newest one seen are discarded.
func (c *LRUCache[T]) Set(key string, gen uint64, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.gen {
		return
	}
	c.gen = gen

	e := &entry[T]{key: key, gen: gen, value: value, expiresAt: time.Now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.items[key] = c.order.PushFront(e)

	for c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

// Invalidate advances the cache to gen and drops every entry built from an
// earlier generation. It returns the number of entries dropped.
func (c *LRUCache[T]) Invalidate(gen uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen > c.gen {
		c.gen = gen
	}
	return c.removeWhere(func(e *entry[T]) bool { return e.gen < c.gen })
}

// CleanExpired removes entries past their TTL and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	return c.removeWhere(func(e *entry[T]) bool { return now.After(e.expiresAt) })
}

func (c *LRUCache[T]) removeWhere(drop func(*entry[T]) bool) int {
	n := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if drop(elem.Value.(*entry[T])) {
			c.remove(elem)
			n++
		}
		elem = next
	}
	return n
}

func (c *LRUCache[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

var _ Cache[int] = (*LRUCache[int])(nil)
