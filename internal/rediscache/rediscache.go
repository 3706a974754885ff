package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"flockwatch/internal/logger"
	"flockwatch/internal/metrics"
)

// Report kinds with their cache lifetimes. Summaries churn fast, weekly
// reports and forecasts are expensive and stable.
const (
	KindRoomSummary  = "room_summary"
	KindAnalytics    = "analytics"
	KindKPIs         = "kpis"
	KindWeeklyReport = "weekly_report"
	KindForecast     = "forecast"
)

var kindTTLs = map[string]time.Duration{
	KindRoomSummary:  5 * time.Minute,
	KindAnalytics:    10 * time.Minute,
	KindKPIs:         5 * time.Minute,
	KindWeeklyReport: 30 * time.Minute,
	KindForecast:     time.Hour,
}

const defaultTTL = 10 * time.Minute

// ReportCache stores rendered report payloads in Redis so dashboard
// reads skip recomputation. A nil client degrades to pass-through: every
// Get misses and every Set is a no-op.
type ReportCache struct {
	client *redis.Client
	log    *logger.Logger
}

func New(client *redis.Client, log *logger.Logger) *ReportCache {
	return &ReportCache{client: client, log: log}
}

func key(kind, id string) string {
	return fmt.Sprintf("flockwatch:%s:%s", kind, id)
}

// Get unmarshals the cached payload for kind/id into dest. The second
// return reports whether the key was present.
func (c *ReportCache) Get(ctx context.Context, kind, id string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}

	raw, err := c.client.Get(ctx, key(kind, id)).Bytes()
	if err == redis.Nil {
		metrics.CacheMissesTotal.WithLabelValues("report").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached %s for %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// A payload we can no longer decode is as good as absent.
		c.client.Del(ctx, key(kind, id))
		metrics.CacheMissesTotal.WithLabelValues("report").Inc()
		return false, nil
	}

	metrics.CacheHitsTotal.WithLabelValues("report").Inc()
	return true, nil
}

// Set stores a payload under kind/id with the kind's TTL.
func (c *ReportCache) Set(ctx context.Context, kind, id string, value interface{}) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s for %s: %w", kind, id, err)
	}

	ttl, ok := kindTTLs[kind]
	if !ok {
		ttl = defaultTTL
	}
	if err := c.client.Set(ctx, key(kind, id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s for %s: %w", kind, id, err)
	}
	return nil
}

// Delete drops one cached payload.
func (c *ReportCache) Delete(ctx context.Context, kind, id string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key(kind, id)).Err()
}

// Invalidate drops every cached payload for an entity across all kinds,
// for use after new metric rows land.
func (c *ReportCache) Invalidate(ctx context.Context, id string) error {
	if c.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("flockwatch:*:%s", id)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys for %s: %w", id, err)
	}

	if deleted > 0 {
		c.log.Debug("report cache invalidated", "entity", id, "keys", deleted)
	}
	return nil
}

// Healthy pings Redis. A nil client is healthy in the degraded sense.
func (c *ReportCache) Healthy(ctx context.Context) bool {
	if c.client == nil {
		return true
	}
	return c.client.Ping(ctx).Err() == nil
}
