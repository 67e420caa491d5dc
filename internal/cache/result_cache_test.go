package cache

import (
	"fmt"
	"testing"
	"time"

	"go-menu-analyzer/pkg/models"
)

func menuNamed(name string) models.Menu {
	return models.Menu{
		RestaurantName: name,
		Dishes:         []models.Dish{{Name: "Caesar Salad", Price: "$12.99", Confidence: 0.9}},
		Confidence:     0.9,
	}
}

func TestResultCacheHit(t *testing.T) {
	c := NewResultCache(5*time.Minute, 20, 10*1024*1024)
	c.Put("hash-a", menuNamed("Trattoria"))

	result, ok := c.Get("hash-a")
	if !ok {
		t.Fatal("expected a hit")
	}
	if result.Menu.RestaurantName != "Trattoria" {
		t.Errorf("restaurant = %q", result.Menu.RestaurantName)
	}
}

func TestResultCacheMiss(t *testing.T) {
	c := NewResultCache(5*time.Minute, 20, 10*1024*1024)
	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected a miss")
	}
}

func TestResultCacheTTLBoundary(t *testing.T) {
	now := time.Now()
	c := NewResultCache(300*time.Second, 20, 10*1024*1024)
	c.now = func() time.Time { return now }

	c.Put("hash-a", menuNamed("Trattoria"))

	// Just inside the TTL: still served.
	now = now.Add(300*time.Second - time.Millisecond)
	if _, ok := c.Get("hash-a"); !ok {
		t.Fatal("entry inside TTL should be served")
	}

	// Exactly at the TTL: treated as a miss and removed.
	now = now.Add(time.Millisecond)
	if _, ok := c.Get("hash-a"); ok {
		t.Fatal("entry at TTL boundary must be a miss")
	}
	if c.Len() != 0 {
		t.Errorf("stale entry should have been removed, Len() = %d", c.Len())
	}
}

func TestResultCacheLRUEviction(t *testing.T) {
	c := NewResultCache(5*time.Minute, 3, 10*1024*1024)

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("hash-%d", i), menuNamed(fmt.Sprintf("r%d", i)))
	}

	// Touch hash-0 so hash-1 becomes the LRU victim.
	c.Get("hash-0")
	c.Put("hash-3", menuNamed("r3"))

	if _, ok := c.Get("hash-1"); ok {
		t.Error("hash-1 should have been evicted")
	}
	for _, hash := range []string{"hash-0", "hash-2", "hash-3"} {
		if _, ok := c.Get(hash); !ok {
			t.Errorf("%s should still be cached", hash)
		}
	}
}

func TestResultCacheCostEviction(t *testing.T) {
	// Cost cap small enough that two bulky menus cannot coexist.
	big := models.Menu{Dishes: make([]models.Dish, 20)}
	for i := range big.Dishes {
		big.Dishes[i] = models.Dish{Name: "A very long dish name to inflate the cost estimate"}
	}

	c := NewResultCache(5*time.Minute, 100, 3000)
	c.Put("hash-a", big)
	c.Put("hash-b", big)

	if c.Len() != 1 {
		t.Errorf("cost bound should keep a single entry, Len() = %d", c.Len())
	}
	if _, ok := c.Get("hash-b"); !ok {
		t.Error("most recent entry should survive cost eviction")
	}
}

func TestResultCachePutReplacesExisting(t *testing.T) {
	c := NewResultCache(5*time.Minute, 20, 10*1024*1024)
	c.Put("hash-a", menuNamed("old"))
	c.Put("hash-a", menuNamed("new"))

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	result, _ := c.Get("hash-a")
	if result.Menu.RestaurantName != "new" {
		t.Errorf("restaurant = %q, want new", result.Menu.RestaurantName)
	}
}

func TestResultCacheClear(t *testing.T) {
	c := NewResultCache(5*time.Minute, 20, 10*1024*1024)
	c.Put("hash-a", menuNamed("a"))
	c.Put("hash-b", menuNamed("b"))

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear", c.Len())
	}
	if _, ok := c.Get("hash-a"); ok {
		t.Error("cleared entry still served")
	}
}
