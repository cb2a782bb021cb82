// Package cache provides an in-memory LRU cache with per-entry TTL and
// tag-based invalidation. The search gateway uses it to avoid re-issuing
// identical provider queries within a session window; page-content and
// robots.txt consumers share the same contract.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a fixed-capacity LRU with TTL and tags.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	tags     map[string]map[string]struct{}
	now      func() time.Time // for testing
}

type entry struct {
	key     string
	value   any
	tags    []string
	expires time.Time
}

// New creates a cache holding up to capacity entries, each valid for ttl.
// A ttl of zero disables expiry.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 128
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		tags:     make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key with optional tags, evicting the least
// recently used entry when the cache is full.
func (c *Cache) Set(key string, value any, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	el := c.order.PushFront(&entry{key: key, value: value, tags: tags, expires: expires})
	c.entries[key] = el
	for _, tag := range tags {
		if c.tags[tag] == nil {
			c.tags[tag] = make(map[string]struct{})
		}
		c.tags[tag][key] = struct{}{}
	}

	for c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
}

// InvalidateByTag removes every entry carrying the given tag and returns
// the number of entries dropped.
func (c *Cache) InvalidateByTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.tags[tag]
	if !ok {
		return 0
	}
	n := 0
	for key := range keys {
		if el, ok := c.entries[key]; ok {
			c.remove(el)
			n++
		}
	}
	return n
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// remove drops an element. Must hold mu.
func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)
	for _, tag := range e.tags {
		if set, ok := c.tags[tag]; ok {
			delete(set, e.key)
			if len(set) == 0 {
				delete(c.tags, tag)
			}
		}
	}
}
