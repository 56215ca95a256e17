package pipeline

import "sync"

// titleCache memoizes resolved titles for repeated lookups of the same URL
// or query. It is bounded and evicts oldest-first; it only ever holds
// immutable derived strings, never request state.
type titleCache struct {
	mu      sync.Mutex
	max     int
	order   []string
	entries map[string]string
}

func newTitleCache(max int) *titleCache {
	if max < 1 {
		max = 64
	}
	return &titleCache{
		max:     max,
		entries: make(map[string]string, max),
	}
}

func (c *titleCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *titleCache) put(key, value string) {
	if value == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = value
		return
	}
	if len(c.entries) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = value
	c.order = append(c.order, key)
}

func (c *titleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
