package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ContentCache is a bounded in-process TTL cache backed by ristretto. It holds
// derived data that is expensive to rebuild (for example extracted article
// bodies) and may drop entries under pressure, so callers must treat a miss as
// normal.
type ContentCache[V any] struct {
	rc  *ristretto.Cache[string, V]
	ttl time.Duration
}

// NewContentCache creates a ContentCache holding at most maxItems entries,
// each living for ttl.
func NewContentCache[V any](maxItems int64, ttl time.Duration) (*ContentCache[V], error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ContentCache[V]{rc: rc, ttl: ttl}, nil
}

// Get retrieves a value by key.
func (c *ContentCache[V]) Get(key string) (V, bool) {
	return c.rc.Get(key)
}

// Set stores val under key. The write is visible to Get once Set returns,
// unless ristretto declined to admit it.
func (c *ContentCache[V]) Set(key string, val V) bool {
	ok := c.rc.SetWithTTL(key, val, 1, c.ttl)
	c.rc.Wait()
	return ok
}

// Close releases the cache's background goroutines.
func (c *ContentCache[V]) Close() {
	c.rc.Close()
}
