package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
	EvictDeleted  EvictReason = "deleted"
)

// Stats is a snapshot of the cache's counters since it was created.
type Stats struct {
	Size     int   `json:"size"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Capacity int64 `json:"evicted_capacity"`
	Expired  int64 `json:"expired"`
	Deleted  int64 `json:"deleted"`
}

// LRUCache holds at most maxSize entries. An entry lives ttl after it was
// last Set or Touched; Get marks it recently used without extending it.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	index   map[string]*list.Element
	order   *list.List // front is most recently used
	now     func() time.Time
	onEvict func(key string, value T, reason EvictReason)
	stats   Stats
}

type entry[T any] struct {
	key      string
	value    T
	deadline time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: max(maxSize, 1),
		ttl:     ttl,
		index:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// OnEvict registers fn to run for every entry that leaves the cache. It runs
// with the cache lock held and must not call back into it.
func (c *LRUCache[T]) OnEvict(fn func(key string, value T, reason EvictReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.use(key, false)
}

// Touch is Get that also restarts the entry's ttl.
func (c *LRUCache[T]) Touch(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.use(key, true)
}

func (c *LRUCache[T]) use(key string, renew bool) (T, bool) {
	var zero T
	elem, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := elem.Value.(*entry[T])
	now := c.now()
	if now.After(e.deadline) {
		c.drop(elem, EvictExpired)
		c.stats.Misses++
		return zero, false
	}
	if renew {
		e.deadline = now.Add(c.ttl)
	}
	c.order.MoveToFront(elem)
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key. Replacing an entry does not count as an
// eviction; adding one past maxSize evicts the least recently used.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := c.now().Add(c.ttl)
	if elem, ok := c.index[key]; ok {
		e := elem.Value.(*entry[T])
		e.value, e.deadline = value, deadline
		c.order.MoveToFront(elem)
		return
	}
	c.index[key] = c.order.PushFront(&entry[T]{key: key, value: value, deadline: deadline})
	for c.order.Len() > c.maxSize {
		c.drop(c.order.Back(), EvictCapacity)
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		c.drop(elem, EvictDeleted)
	}
}

func (c *LRUCache[T]) drop(elem *list.Element, reason EvictReason) {
	e := c.order.Remove(elem).(*entry[T])
	delete(c.index, e.key)
	switch reason {
	case EvictCapacity:
		c.stats.Capacity++
	case EvictExpired:
		c.stats.Expired++
	case EvictDeleted:
		c.stats.Deleted++
	}
	if c.onEvict != nil {
		c.onEvict(e.key, e.value, reason)
	}
}

// CleanExpired evicts every expired entry and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[T]).deadline) {
			c.drop(elem, EvictExpired)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.index)
	return s
}
