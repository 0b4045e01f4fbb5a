// Package cache provides the byte-bounded LRU caches pkdns keeps for
// pkarr packets and ICANN responses.
package cache

import (
	"container/list"
	"sync"
)

// Cache is a byte-bounded cache with approximate LRU eviction. Both
// reads and writes refresh an entry's recency. All methods are safe
// for concurrent use; readers never observe a partially inserted
// entry.
type Cache struct {
	mu sync.Mutex

	maxBytes int64
	used     int64

	ll    *list.List
	items map[uint64]*list.Element
}

type entry struct {
	key   uint64
	value any
	size  int64
}

// New returns a cache bounded by maxBytes. A bound below one entry
// still admits single entries; eviction never removes the last one.
func New(maxBytes int64) *Cache {
	if maxBytes < 1 {
		maxBytes = 1
	}

	return &Cache{
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

// (*Cache).Get looks up the element under key and marks it recently
// used.
func (c *Cache) Get(key uint64) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}

	c.ll.MoveToFront(el)

	return el.Value.(*entry).value, true
}

// (*Cache).Add inserts value under key with the given byte weight. An
// existing entry under the same key is replaced. Least-recently used
// entries are evicted until the byte bound holds or only one entry is
// left.
func (c *Cache) Add(key uint64, value any, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.used += size - e.size
		e.value, e.size = value, size
		c.ll.MoveToFront(el)
	} else {
		c.items[key] = c.ll.PushFront(&entry{key: key, value: value, size: size})
		c.used += size
	}

	for c.used > c.maxBytes && c.ll.Len() > 1 {
		c.removeOldest()
	}
}

// (*Cache).Remove removes the element under key.
func (c *Cache) Remove(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// (*Cache).Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ll.Len()
}

// (*Cache).Bytes returns the summed weight of all entries.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.used
}

func (c *Cache) removeOldest() {
	if el := c.ll.Back(); el != nil {
		c.remove(el)
	}
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.used -= e.size
}
