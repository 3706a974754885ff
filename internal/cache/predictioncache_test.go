package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"flockwatch/internal/logger"
)

func TestKey_SortsParams(t *testing.T) {
	a := Key("predict", map[string]string{"room": "room-01", "horizon": "7"})
	b := Key("predict", map[string]string{"horizon": "7", "room": "room-01"})

	if a != b {
		t.Errorf("Expected identical keys regardless of param order, got %q and %q", a, b)
	}
	if a != "predict?horizon=7&room=room-01" {
		t.Errorf("Unexpected canonical key: %q", a)
	}
}

func TestKey_NoParams(t *testing.T) {
	if got := Key("kpis", nil); got != "kpis" {
		t.Errorf("Expected bare endpoint key, got %q", got)
	}
}

func TestPredictionCache_GetSet(t *testing.T) {
	c := NewPredictionCache(10, time.Minute, logger.NewNop())

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for absent key")
	}

	c.Set("k1", 42)
	value, ok := c.Get("k1")
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if value.(int) != 42 {
		t.Errorf("Expected 42, got %v", value)
	}
}

func TestPredictionCache_TTLExpiry(t *testing.T) {
	c := NewPredictionCache(10, 10*time.Minute, logger.NewNop())

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("k1", "v1")

	c.now = func() time.Time { return base.Add(9 * time.Minute) }
	if _, ok := c.Get("k1"); !ok {
		t.Error("Expected hit before TTL")
	}

	// Staleness is bounded by insertion time; the hit above must not
	// extend the entry's life.
	c.now = func() time.Time { return base.Add(10 * time.Minute) }
	if _, ok := c.Get("k1"); ok {
		t.Error("Expected miss at TTL boundary")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry removed, got len %d", c.Len())
	}
}

func TestPredictionCache_EvictsLeastAccessed(t *testing.T) {
	c := NewPredictionCache(3, time.Hour, logger.NewNop())

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// a and c get extra reads; b stays at its insertion count.
	c.Get("a")
	c.Get("a")
	c.Get("c")

	c.Set("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("Expected least-accessed entry b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Expected %s to survive eviction", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Expected capacity held at 3, got %d", c.Len())
	}
}

func TestPredictionCache_OverwriteDoesNotEvict(t *testing.T) {
	c := NewPredictionCache(2, time.Hour, logger.NewNop())

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	if c.Len() != 2 {
		t.Errorf("Expected overwrite to keep len 2, got %d", c.Len())
	}
	if value, ok := c.Get("a"); !ok || value.(int) != 10 {
		t.Errorf("Expected overwritten value 10, got %v (ok=%v)", value, ok)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Expected b to survive an overwrite of a")
	}
}

func TestPredictionCache_NeverExceedsCapacity(t *testing.T) {
	c := NewPredictionCache(5, time.Hour, logger.NewNop())

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		if c.Len() > 5 {
			t.Fatalf("Capacity exceeded: len %d after insert %d", c.Len(), i)
		}
	}
}

func TestPredictionCache_CachedComputesOnceOnHit(t *testing.T) {
	c := NewPredictionCache(10, time.Hour, logger.NewNop())

	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return "result", nil
	}

	params := map[string]string{"room": "room-01"}
	for i := 0; i < 3; i++ {
		value, err := c.Cached("summary", params, compute)
		if err != nil {
			t.Fatalf("Cached() error = %v", err)
		}
		if value.(string) != "result" {
			t.Errorf("Expected cached result, got %v", value)
		}
	}

	if calls != 1 {
		t.Errorf("Expected compute to run once, ran %d times", calls)
	}
}

func TestPredictionCache_CachedErrorNotStored(t *testing.T) {
	c := NewPredictionCache(10, time.Hour, logger.NewNop())

	wantErr := errors.New("upstream down")
	_, err := c.Cached("summary", nil, func() (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected compute error surfaced, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected failed computation not cached, len %d", c.Len())
	}
}

func TestPredictionCache_ClearExpired(t *testing.T) {
	c := NewPredictionCache(10, 10*time.Minute, logger.NewNop())

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("old1", 1)
	c.Set("old2", 2)

	c.now = func() time.Time { return base.Add(5 * time.Minute) }
	c.Set("fresh", 3)

	c.now = func() time.Time { return base.Add(11 * time.Minute) }
	if removed := c.ClearExpired(); removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry remaining, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("Expected fresh entry to survive ClearExpired")
	}
}
