package tracks

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
)

type cacheKey struct {
	id      string
	samples int
}

// Cache memoises generated centrelines by (track id, sample count). Each
// track keeps only its most recently requested sample count; asking for a
// different count drops the old entry. Concurrent misses for the same key
// share one generation.
//
// Returned slices are shared and must not be modified.
type Cache struct {
	reg   *Registry
	group singleflight.Group

	mu      sync.Mutex
	entries map[cacheKey][]geom.Point
	current map[string]int // track id -> cached sample count
	hits    int
	misses  int
}

// NewCache returns an empty cache over reg.
func NewCache(reg *Registry) *Cache {
	return &Cache{
		reg:     reg,
		entries: make(map[cacheKey][]geom.Point),
		current: make(map[string]int),
	}
}

// Registry returns the registry the cache reads presets from.
func (c *Cache) Registry() *Registry { return c.reg }

// Points returns the n-point centreline for track id, generating it on a
// miss. n <= 0 selects curve.DefaultSampleCount.
func (c *Cache) Points(id string, n int) ([]geom.Point, error) {
	if n <= 0 {
		n = curve.DefaultSampleCount
	}
	key := cacheKey{id: id, samples: n}

	c.mu.Lock()
	if pts, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return pts, nil
	}
	c.misses++
	if old, ok := c.current[id]; ok && old != n {
		delete(c.entries, cacheKey{id: id, samples: old})
		delete(c.current, id)
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%s/%d", id, n), func() (interface{}, error) {
		p, err := c.reg.Get(id)
		if err != nil {
			return nil, err
		}
		return p.Generate(n)
	})
	if err != nil {
		return nil, err
	}
	pts := v.([]geom.Point)

	c.mu.Lock()
	if old, ok := c.current[id]; ok && old != n {
		delete(c.entries, cacheKey{id: id, samples: old})
	}
	c.entries[key] = pts
	c.current[id] = n
	c.mu.Unlock()
	return pts, nil
}

// Invalidate drops any cached geometry for id.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.current[id]; ok {
		delete(c.entries, cacheKey{id: id, samples: n})
		delete(c.current, id)
	}
}

// Len returns the number of cached centrelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
