package optimizer

import (
	"container/list"
	"fmt"
	"sync"

	"go-menu-analyzer/pkg/models"
)

const (
	defaultImageCacheEntries = 8
	defaultImageCacheBytes   = 32 * 1024 * 1024
)

// imageCache is a bounded LRU of optimized images keyed by content hash and
// configuration fingerprint. Purely advisory: a miss only costs recomputation.
type imageCache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	totalBytes int64
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type imageCacheEntry struct {
	key   string
	image *models.OptimizedImage
}

func newImageCache(maxEntries int, maxBytes int64) *imageCache {
	return &imageCache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func cacheKey(hash string, cfg OptimizationConfig) string {
	return fmt.Sprintf("%s|%dx%d|q%d|%t%t%t%t%t", hash,
		cfg.TargetWidth, cfg.TargetHeight, cfg.CompressionQuality,
		cfg.AutoRotate, cfg.CropToContent, cfg.Resize, cfg.EnhanceText, cfg.ColorNormalize)
}

func (c *imageCache) get(hash string, cfg OptimizationConfig) (*models.OptimizedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(hash, cfg)]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*imageCacheEntry).image, true
}

func (c *imageCache) put(hash string, cfg OptimizationConfig, img *models.OptimizedImage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(hash, cfg)
	if elem, ok := c.entries[key]; ok {
		old := elem.Value.(*imageCacheEntry)
		c.totalBytes += int64(len(img.Data)) - int64(len(old.image.Data))
		old.image = img
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&imageCacheEntry{key: key, image: img})
	c.entries[key] = elem
	c.totalBytes += int64(len(img.Data))

	for (c.order.Len() > c.maxEntries || c.totalBytes > c.maxBytes) && c.order.Len() > 1 {
		c.evictOldest()
	}
}

func (c *imageCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*imageCacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
	c.totalBytes -= int64(len(entry.image.Data))
}
