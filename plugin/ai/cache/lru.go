package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache is a size-bounded LRU cache with per-entry TTL.
type LRUCache struct {
	capacity   int
	defaultTTL time.Duration

	mu        sync.Mutex
	items     map[string]*list.Element
	order     *list.List // front is most recently used
	evictions uint64
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache(capacity int, defaultTTL time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &LRUCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value, e.expiresAt = value, expiresAt
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.capacity {
		c.remove(c.order.Back())
		c.evictions++
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
}

// Invalidate removes key, or all keys sharing the prefix when pattern ends in '*'.
// It returns the number of removed entries.
func (c *LRUCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		if el, ok := c.items[pattern]; ok {
			c.remove(el)
			return 1
		}
		return 0
	}

	count := 0
	for key, el := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.remove(el)
			count++
		}
	}
	return count
}

func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Evictions returns how many entries were dropped to make room.
func (c *LRUCache) Evictions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry).expiresAt) {
			c.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

// remove must be called with the lock held.
func (c *LRUCache) remove(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
