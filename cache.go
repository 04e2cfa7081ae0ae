package ocfl

import "sync"

// InventoryCache caches parsed inventories by object id. Implementations
// must be safe for concurrent use. The commit pipeline invalidates an
// object's entry before releasing its write lock, so readers never observe a
// stale inventory after a commit.
type InventoryCache interface {
	// Get returns the cached inventory for the object id, or nil.
	Get(objectID string) *Inventory
	// Put caches the inventory for the object id.
	Put(objectID string, inv *Inventory)
	// Invalidate removes the object id's entry.
	Invalidate(objectID string)
}

// MapInventoryCache is a minimal InventoryCache over a sync.Map. It has no
// eviction; callers needing bounded memory should provide their own
// implementation.
type MapInventoryCache struct {
	entries sync.Map
}

var _ InventoryCache = (*MapInventoryCache)(nil)

// NewMapInventoryCache returns an empty MapInventoryCache.
func NewMapInventoryCache() *MapInventoryCache {
	return &MapInventoryCache{}
}

func (c *MapInventoryCache) Get(objectID string) *Inventory {
	v, ok := c.entries.Load(objectID)
	if !ok {
		return nil
	}
	return v.(*Inventory)
}

func (c *MapInventoryCache) Put(objectID string, inv *Inventory) {
	c.entries.Store(objectID, inv)
}

func (c *MapInventoryCache) Invalidate(objectID string) {
	c.entries.Delete(objectID)
}
