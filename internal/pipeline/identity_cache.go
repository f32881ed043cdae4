package pipeline

import (
	"sync"

	"cardanoScope/internal/ledger"
)

// IdentityCache remembers registry ids of pairs already resolved. Pairs the
// registry did not know are not cached since they may be registered later.
type IdentityCache struct {
	mu   sync.RWMutex
	data map[string]int64
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{data: make(map[string]int64)}
}

func (c *IdentityCache) Get(pair ledger.AssetPair) (int64, bool) {
	c.mu.RLock()
	id, ok := c.data[pair.String()]
	c.mu.RUnlock()
	return id, ok
}

func (c *IdentityCache) Set(key string, id int64) {
	c.mu.Lock()
	c.data[key] = id
	c.mu.Unlock()
}

// Misses returns the pairs without a cached id and fills found with the rest.
func (c *IdentityCache) Misses(pairs []ledger.AssetPair, found map[string]int64) []ledger.AssetPair {
	misses := make([]ledger.AssetPair, 0, len(pairs))
	for _, pair := range pairs {
		if id, ok := c.Get(pair); ok {
			found[pair.String()] = id
			continue
		}
		misses = append(misses, pair)
	}
	return misses
}

func (c *IdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
