package cache

import "sync"

// IDSet remembers which notice ids a store has already accepted.
type IDSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func New() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Add records id and reports whether it was new.
func (c *IDSet) Add(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.seen[id]; exists {
		return false
	}
	c.seen[id] = struct{}{}
	return true
}

func (c *IDSet) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.seen[id]
	return exists
}

func (c *IDSet) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.seen, id)
}

func (c *IDSet) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.seen)
}
