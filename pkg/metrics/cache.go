package metrics

import "sync/atomic"

// CacheMetric counts lookups against a memoizing cache.
//
// A dedup is a miss that joined a fetch already in flight instead of
// starting a new one.
type CacheMetric struct {
	name   string
	hits   atomic.Int64
	misses atomic.Int64
	dedups atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Name returns the metric name.
func (c *CacheMetric) Name() string { return c.name }

func (c *CacheMetric) Hit() {
	if Enabled() {
		c.hits.Add(1)
	}
}

func (c *CacheMetric) Miss() {
	if Enabled() {
		c.misses.Add(1)
	}
}

func (c *CacheMetric) Dedup() {
	if Enabled() {
		c.dedups.Add(1)
	}
}

// Stats returns the current counts.
func (c *CacheMetric) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return CacheStats{
		Name:     c.name,
		Hits:     hits,
		Misses:   misses,
		Dedups:   c.dedups.Load(),
		HitRatio: ratio,
	}
}

// Reset zeroes all counters.
func (c *CacheMetric) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.dedups.Store(0)
}

// CacheStats is a point-in-time view of a CacheMetric.
type CacheStats struct {
	Name     string  `json:"name"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Dedups   int64   `json:"dedups"`
	HitRatio float64 `json:"hit_ratio"`
}

// DetailCache tracks the per-repository detail cache.
var DetailCache = newCacheMetric("detail_cache")

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{DetailCache}
}
