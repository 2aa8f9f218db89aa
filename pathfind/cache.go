package pathfind

import (
	"time"

	"crowdnav/geom"
)

type cacheKey struct {
	start int
	goal  int
}

type cacheEntry struct {
	waypoints []geom.Vec2
	cost      float64
	level     int
	storedAt  time.Time
}

// pathCache is bounded two ways: a hard entry cap with oldest-insertion
// eviction, and a TTL checked lazily on read. Nothing sweeps expired entries
// proactively; they die on the next probe or get evicted by capacity.
type pathCache struct {
	entries map[cacheKey]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func newPathCache(maxSize int, ttl time.Duration) *pathCache {
	return &pathCache{
		entries: make(map[cacheKey]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *pathCache) get(key cacheKey) (*cacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry, true
}

func (c *pathCache) put(key cacheKey, waypoints []geom.Vec2, cost float64, level int) {
	if c.maxSize <= 0 {
		return
	}
	c.entries[key] = &cacheEntry{
		waypoints: waypoints,
		cost:      cost,
		level:     level,
		storedAt:  c.now(),
	}
	if len(c.entries) > c.maxSize {
		c.evictOldest()
	}
}

func (c *pathCache) evictOldest() {
	var oldestKey cacheKey
	var oldest time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldest) {
			first = false
			oldest = entry.storedAt
			oldestKey = key
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// invalidateNear drops every cached path that passes within radius of p.
// Proximity of recorded waypoints is a stand-in for exact reachability; a
// path rerouted by an obstacle it never recorded a waypoint near survives
// until its TTL.
func (c *pathCache) invalidateNear(p geom.Vec2, radius float64) {
	for key, entry := range c.entries {
		for _, wp := range entry.waypoints {
			if wp.Dist(p) <= radius {
				delete(c.entries, key)
				break
			}
		}
	}
}

func (c *pathCache) len() int {
	return len(c.entries)
}
