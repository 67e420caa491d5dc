package cache

import (
	"container/list"
	"sync"
	"time"

	"go-menu-analyzer/internal/logger"
	"go-menu-analyzer/pkg/models"
)

// CachedResult is one stored analysis result.
type CachedResult struct {
	Hash       string
	Menu       models.Menu
	InsertedAt time.Time
}

// ResultCache is a content-addressed, bounded, time-expiring store of prior
// analysis results. Entries past the TTL are treated as misses even while
// still physically present; eviction is lazy.
type ResultCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	maxCost    int64
	totalCost  int64
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
	now        func() time.Time
}

type cacheEntry struct {
	result CachedResult
	cost   int64
}

// NewResultCache creates a result cache with the given bounds.
func NewResultCache(ttl time.Duration, maxEntries int, maxCost int64) *ResultCache {
	return &ResultCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		maxCost:    maxCost,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get returns the cached result for the hash, or false on a miss. A stale
// entry is removed and reported as a miss; it is never served.
func (c *ResultCache) Get(hash string) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[hash]
	if !ok {
		return CachedResult{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.result.InsertedAt) >= c.ttl {
		c.remove(elem)
		logger.ForComponent("cache").WithField("hash", shortHash(hash)).Debug("Cache entry expired")
		return CachedResult{}, false
	}

	c.order.MoveToFront(elem)
	return entry.result, true
}

// Put stores a menu under the content hash, evicting least-recently-used
// entries when the count or aggregate cost bound would be exceeded.
func (c *ResultCache) Put(hash string, menu models.Menu) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := menuCost(menu)
	result := CachedResult{Hash: hash, Menu: menu, InsertedAt: c.now()}

	if elem, ok := c.entries[hash]; ok {
		entry := elem.Value.(*cacheEntry)
		c.totalCost += cost - entry.cost
		entry.result = result
		entry.cost = cost
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&cacheEntry{result: result, cost: cost})
		c.entries[hash] = elem
		c.totalCost += cost
	}

	for (c.order.Len() > c.maxEntries || c.totalCost > c.maxCost) && c.order.Len() > 1 {
		c.remove(c.order.Back())
	}
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.totalCost = 0
}

// Len returns the number of physically present entries, stale ones included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *ResultCache) remove(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.result.Hash)
	c.totalCost -= entry.cost
}

// menuCost approximates the memory footprint of a menu for the aggregate
// size bound.
func menuCost(menu models.Menu) int64 {
	cost := int64(len(menu.RestaurantName)) + 64
	for _, dish := range menu.Dishes {
		cost += int64(len(dish.Name) + len(dish.Description) + len(dish.Price) + len(dish.ImageURL))
		for _, a := range dish.Allergens {
			cost += int64(len(a))
		}
		cost += int64(len(dish.DietaryInfo) * 16)
		cost += 96
	}
	return cost
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
