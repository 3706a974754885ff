package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"flockwatch/internal/logger"
	"flockwatch/internal/metrics"
)

type predictionEntry struct {
	value       interface{}
	insertedAt  time.Time
	lastAccess  time.Time
	accessCount int
}

// PredictionCache is a capacity- and TTL-bounded cache of computed
// responses. When full it evicts the entry with the globally smallest
// access count.
type PredictionCache struct {
	maxSize int
	ttl     time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*predictionEntry
}

// NewPredictionCache builds a cache bounded to maxSize entries with the
// given TTL.
func NewPredictionCache(maxSize int, ttl time.Duration, log *logger.Logger) *PredictionCache {
	return &PredictionCache{
		maxSize: maxSize,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*predictionEntry),
	}
}

// Key builds the canonical cache key for an endpoint and its parameters.
// Parameters are serialized in sorted order so semantically identical
// requests always hash identically.
func Key(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Get returns the cached value for key if present and fresh. A hit bumps
// the access count and last-access time.
func (c *PredictionCache) Get(key string) (interface{}, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues("prediction").Inc()
		return nil, false
	}
	if now.Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, key)
		metrics.CacheEvictionsTotal.WithLabelValues("prediction", "ttl").Inc()
		metrics.CacheMissesTotal.WithLabelValues("prediction").Inc()
		return nil, false
	}

	entry.accessCount++
	entry.lastAccess = now
	metrics.CacheHitsTotal.WithLabelValues("prediction").Inc()
	return entry.value, true
}

// Set inserts or overwrites key. When inserting a new key at capacity,
// the entry with the smallest access count is evicted first; ties break
// arbitrarily.
func (c *PredictionCache) Set(key string, value interface{}) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var victim string
		minCount := -1
		for k, e := range c.entries {
			if minCount < 0 || e.accessCount < minCount {
				victim = k
				minCount = e.accessCount
			}
		}
		delete(c.entries, victim)
		metrics.CacheEvictionsTotal.WithLabelValues("prediction", "capacity").Inc()
		c.log.Debug("evicted least-accessed prediction", "key", victim, "access_count", minCount)
	}

	c.entries[key] = &predictionEntry{
		value:       value,
		insertedAt:  now,
		lastAccess:  now,
		accessCount: 1,
	}
}

// Cached wraps a computation: on a hit the computation never runs; on a
// miss it runs once, its result is stored and returned. Side effects of
// compute therefore occur only on misses.
func (c *PredictionCache) Cached(endpoint string, params map[string]string, compute func() (interface{}, error)) (interface{}, error) {
	key := Key(endpoint, params)

	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(key, value)
	return value, nil
}

// ClearExpired removes entries older than the TTL and returns the count.
func (c *PredictionCache) ClearExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("prediction", "ttl").Add(float64(removed))
		c.log.Info("cleared expired predictions", "count", removed)
	}
	return removed
}

// Len reports the number of cached responses.
func (c *PredictionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
