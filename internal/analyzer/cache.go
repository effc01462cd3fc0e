package analyzer

import "sync"

// cache is a bounded, FIFO-evicted memoization cache keyed by
// CanonicalKey. It is used by Importance and LabelClassifier: Importance
// keys on CanonicalKey plus the lowercased subject (its subject rules read
// it), LabelClassifier on CanonicalKey alone. DateSize is not memoized
// through it: recency_score and
// size_penalty are continuous functions of exact age/size, so bucketing
// them would make two messages in the same age/size bucket report
// identical scores despite one being meaningfully newer or smaller than
// the other — and the computation is cheap arithmetic anyway, so there is
// nothing to gain by caching it.
type cache struct {
	mu      sync.Mutex
	maxSize int
	data    map[string]any
	order   []string
}

func newCache(maxSize int) *cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &cache{maxSize: maxSize, data: make(map[string]any, maxSize)}
}

func (c *cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *cache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; exists {
		c.data[key] = value
		return
	}
	if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}
	c.data[key] = value
	c.order = append(c.order, key)
}
