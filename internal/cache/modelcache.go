package cache

import (
	"sync"
	"time"

	"flockwatch/internal/logger"
	"flockwatch/internal/metrics"
	"flockwatch/internal/models"
	"flockwatch/internal/registry"
)

// ArtifactLoader loads a model artifact triple from persistent storage.
// Loads are deterministic for a given path, so duplicate concurrent loads
// are harmless.
type ArtifactLoader func(path string) (*registry.ModelArtifact, error)

type modelEntry struct {
	artifact   *registry.ModelArtifact
	insertedAt time.Time
	lastAccess time.Time
}

// ModelCache lazily loads deserialized model artifacts and keeps them in
// memory until their TTL elapses. Entry count is unbounded; only a handful
// of artifacts are ever live at once.
type ModelCache struct {
	ttl    time.Duration
	loader ArtifactLoader
	log    *logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*modelEntry
}

// NewModelCache builds a cache with the given TTL. Construct once at
// process start and pass by handle.
func NewModelCache(ttl time.Duration, loader ArtifactLoader, log *logger.Logger) *ModelCache {
	return &ModelCache{
		ttl:     ttl,
		loader:  loader,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*modelEntry),
	}
}

// Get returns the artifact for path, loading it from storage on a miss or
// after TTL expiry. A storage failure surfaces as CacheError.
func (c *ModelCache) Get(path string) (*registry.ModelArtifact, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()

	if ok && now.Sub(entry.insertedAt) < c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a sweep may have removed it.
		if entry, ok = c.entries[path]; ok && now.Sub(entry.insertedAt) < c.ttl {
			entry.lastAccess = now
			c.mu.Unlock()
			metrics.CacheHitsTotal.WithLabelValues("model").Inc()
			return entry.artifact, nil
		}
		c.mu.Unlock()
	}

	if ok {
		// Present but stale: evict before reloading.
		c.mu.Lock()
		if stale, still := c.entries[path]; still && now.Sub(stale.insertedAt) >= c.ttl {
			delete(c.entries, path)
			metrics.CacheEvictionsTotal.WithLabelValues("model", "ttl").Inc()
		}
		c.mu.Unlock()
	}

	metrics.CacheMissesTotal.WithLabelValues("model").Inc()
	c.log.Debug("model cache miss, loading from storage", "path", path)

	// Load outside the lock. Two concurrent misses may both load; the
	// artifact is immutable once constructed, so last write wins and no
	// reader ever sees a partial entry.
	artifact, err := c.loader(path)
	if err != nil {
		return nil, &models.CacheError{Key: path, Err: err}
	}

	c.mu.Lock()
	c.entries[path] = &modelEntry{
		artifact:   artifact,
		insertedAt: now,
		lastAccess: now,
	}
	c.mu.Unlock()

	return artifact, nil
}

// ClearExpired removes every entry past TTL and returns the count.
// Intended for periodic external housekeeping.
func (c *ModelCache) ClearExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, path)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("model", "ttl").Add(float64(removed))
		c.log.Info("cleared expired model artifacts", "count", removed)
	}
	return removed
}

// Len reports the number of cached artifacts.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
