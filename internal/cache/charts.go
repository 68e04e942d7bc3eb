package cache

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Charts caches rendered PNGs keyed by chart kind, ledger revision and
// granularity. A new revision makes older entries unreachable; the janitor
// or LRU eviction reclaims them.
type Charts struct {
	lru   *LRU[[]byte]
	group singleflight.Group
}

func NewCharts(lru *LRU[[]byte]) *Charts {
	return &Charts{lru: lru}
}

func ChartKey(kind string, revision uint64, granularity string) string {
	return fmt.Sprintf("%s:%d:%s", kind, revision, granularity)
}

// Get returns the cached image for key, rendering it once when missing.
// Concurrent misses for the same key share one render. Empty renders (nil
// images) are cached too.
func (c *Charts) Get(key string, render func() ([]byte, error)) ([]byte, error) {
	if img, ok := c.lru.Get(key); ok {
		return img, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if img, ok := c.lru.Get(key); ok {
			return img, nil
		}
		img, err := render()
		if err != nil {
			return nil, err
		}
		c.lru.Set(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	img, _ := v.([]byte)
	return img, nil
}

func (c *Charts) CleanExpired() int {
	return c.lru.CleanExpired()
}
