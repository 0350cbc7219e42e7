package pipeline

import (
	"container/list"
	"sync"

	"policyqa/internal/domain"
)

// indexCache holds completed document indexes keyed by document ID. Entries
// are write-once: Put never replaces an existing entry. With max > 0 the
// cache evicts the least recently used entry once the capacity is exceeded;
// max == 0 means unbounded.
type indexCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type cacheEntry struct {
	key string
	di  *domain.DocumentIndex
}

func newIndexCache(max int) *indexCache {
	return &indexCache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *indexCache) Get(key string) (*domain.DocumentIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).di, true
}

func (c *indexCache) Put(key string, di *domain.DocumentIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, di: di})
	if c.max > 0 && c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *indexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
