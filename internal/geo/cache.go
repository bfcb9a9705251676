package geo

import (
	"container/list"
	"context"
	"fmt"
	"slices"
	"sync"
)

// CachedGeocoder wraps a ReverseGeocoder with an in-memory LRU cache keyed on
// coordinates rounded to about 100 m.
type CachedGeocoder struct {
	inner ReverseGeocoder

	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	names []string
}

// NewCachedGeocoder creates a cache decorator around a reverse geocoder.
func NewCachedGeocoder(inner ReverseGeocoder, maxEntries int) *CachedGeocoder {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &CachedGeocoder{
		inner:      inner,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *CachedGeocoder) AreaNames(ctx context.Context, lat, lon float64) ([]string, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)
	if names, ok := c.get(key); ok {
		return names, nil
	}

	names, err := c.inner.AreaNames(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(names) > 0 {
		c.put(key, names)
	}
	return names, nil
}

func (c *CachedGeocoder) get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return slices.Clone(el.Value.(*cacheEntry).names), true
}

func (c *CachedGeocoder) put(key string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).names = slices.Clone(names)
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, names: slices.Clone(names)})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
