package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"flockwatch/internal/cache"
	"flockwatch/internal/config"
	"flockwatch/internal/logger"
	"flockwatch/internal/models"
	"flockwatch/internal/registry"
)

// stubHistory serves a fixed window and counts reads.
type stubHistory struct {
	window []models.Observation
	calls  int
	err    error
}

func (s *stubHistory) RecentWindow(entityID string, asOf time.Time, days int) ([]models.Observation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.window, nil
}

// testWindow builds n daily observations with linearly growing weight.
func testWindow(n int) []models.Observation {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	window := make([]models.Observation, n)
	for i := 0; i < n; i++ {
		window[i] = models.Observation{
			EntityID:  "room-01",
			Timestamp: base.AddDate(0, 0, i),
			Values: map[string]float64{
				models.MetricTemperature: 23,
				models.MetricHumidity:    60,
				models.MetricFeed:        30 + float64(i),
				models.MetricWater:       55,
				models.MetricMortality:   0.5,
				models.MetricEggs:        120,
				models.MetricWeight:      1.0 + 0.05*float64(i),
				models.MetricAge:         float64(20 + i),
			},
		}
	}
	return window
}

// newTestEngine wires an engine around a registry holding one active
// constant model: zero coefficients, so every prediction is the intercept.
func newTestEngine(t *testing.T, history HistoryStore, intercept, testMAE float64) *Engine {
	t.Helper()

	log := logger.NewNop()
	reg, err := registry.New(t.TempDir(), log)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	artifact := &registry.ModelArtifact{
		Model:        registry.LinearModel{Coefficients: []float64{0}, Intercept: intercept},
		Scaler:       registry.StandardScaler{Mean: []float64{0}, Scale: []float64{1}},
		FeatureOrder: []string{"flock_age"},
	}
	m := models.ModelMetrics{
		ModelType: "ridge",
		TestMAE:   testMAE,
		TrainedAt: time.Now().UTC().Format(time.RFC3339),
	}
	version, err := reg.Register(artifact, m)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.SetActive(version.ID); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	cfg := config.Default()
	artifacts := cache.NewModelCache(time.Hour, registry.LoadArtifact, log)
	responses := cache.NewPredictionCache(100, 10*time.Minute, log)
	return NewEngine(cfg.Forecast, history, reg, artifacts, responses, log)
}

func TestRecentWindow_MinimumObservations(t *testing.T) {
	engine := newTestEngine(t, &stubHistory{window: testWindow(3)}, 2.0, 0.1)

	window, err := engine.RecentWindow("room-01", time.Now())
	if err != nil {
		t.Fatalf("Expected 3 observations to satisfy the minimum, got %v", err)
	}
	if len(window) != 3 {
		t.Errorf("Expected 3 observations, got %d", len(window))
	}
}

func TestRecentWindow_InsufficientHistory(t *testing.T) {
	engine := newTestEngine(t, &stubHistory{window: testWindow(2)}, 2.0, 0.1)

	_, err := engine.RecentWindow("room-01", time.Now())
	if err == nil {
		t.Fatal("Expected error for 2 observations")
	}

	var insufficient *models.InsufficientHistoryError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientHistoryError, got %T: %v", err, err)
	}
	if insufficient.Have != 2 || insufficient.Need != 3 {
		t.Errorf("Expected have=2 need=3, got have=%d need=%d", insufficient.Have, insufficient.Need)
	}
}

func TestPredictSingle_ConfidenceInterval(t *testing.T) {
	engine := newTestEngine(t, &stubHistory{window: testWindow(7)}, 2.0, 0.1)

	point, lower, upper, err := engine.PredictSingle(map[string]float64{"flock_age": 25})
	if err != nil {
		t.Fatalf("PredictSingle() error = %v", err)
	}
	if math.Abs(point-2.0) > 1e-9 {
		t.Errorf("Expected constant model point 2.0, got %v", point)
	}
	// Half-width is 1.5x the registered test MAE.
	if math.Abs((point-lower)-0.15) > 1e-9 || math.Abs((upper-point)-0.15) > 1e-9 {
		t.Errorf("Expected margin 0.15 either side, got [%v %v %v]", lower, point, upper)
	}
}

func TestPredictMultiHorizon_BoundsAndOffsets(t *testing.T) {
	engine := newTestEngine(t, &stubHistory{window: testWindow(10)}, 2.0, 0.1)

	results, err := engine.PredictMultiHorizon("room-01", []int{7, 14, 30})
	if err != nil {
		t.Fatalf("PredictMultiHorizon() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 horizons, got %d", len(results))
	}

	for _, r := range results {
		if len(r.Days) != r.HorizonDays {
			t.Errorf("Horizon %d has %d days", r.HorizonDays, len(r.Days))
		}
		if r.Metric != models.MetricWeight {
			t.Errorf("Expected weight forecasts, got %q", r.Metric)
		}
		for i, day := range r.Days {
			if day.Offset != i+1 {
				t.Errorf("Expected offset %d, got %d", i+1, day.Offset)
			}
			if day.Lower > day.Predicted || day.Predicted > day.Upper {
				t.Errorf("Bound ordering violated at day %d: [%v %v %v]",
					day.Offset, day.Lower, day.Predicted, day.Upper)
			}
		}
	}
}

func TestPredictMultiHorizon_BlendsModelAndTrend(t *testing.T) {
	window := testWindow(10)
	engine := newTestEngine(t, &stubHistory{window: window}, 2.0, 0.1)

	results, err := engine.PredictMultiHorizon("room-01", []int{7})
	if err != nil {
		t.Fatalf("PredictMultiHorizon() error = %v", err)
	}

	// Last 7 weights span indices 3..9: first 1.15, last 1.45.
	currentWeight := 1.45
	rate := (1.45 - 1.15) / 7
	day1 := results[0].Days[0]
	wantBlend := 0.7*2.0 + 0.3*(currentWeight+rate)
	if math.Abs(day1.Predicted-wantBlend) > 1e-9 {
		t.Errorf("Day 1 blend = %v, want %v", day1.Predicted, wantBlend)
	}

	// 10% presentation band either side of the blended point.
	if math.Abs((day1.Predicted-day1.Lower)-0.10*day1.Predicted) > 1e-9 {
		t.Errorf("Expected 10%% band, got lower gap %v", day1.Predicted-day1.Lower)
	}
}

func TestPredictMultiHorizon_ResponseCached(t *testing.T) {
	store := &stubHistory{window: testWindow(10)}
	engine := newTestEngine(t, store, 2.0, 0.1)

	first, err := engine.PredictMultiHorizon("room-01", []int{7})
	if err != nil {
		t.Fatalf("PredictMultiHorizon() error = %v", err)
	}
	second, err := engine.PredictMultiHorizon("room-01", []int{7})
	if err != nil {
		t.Fatalf("PredictMultiHorizon() repeat error = %v", err)
	}

	if store.calls != 1 {
		t.Errorf("Expected history read once, got %d reads", store.calls)
	}
	if first[0].GeneratedAt != second[0].GeneratedAt {
		t.Error("Expected the identical cached result on the second call")
	}
}

func TestPredictMultiHorizon_InsufficientHistoryNotCached(t *testing.T) {
	store := &stubHistory{window: testWindow(2)}
	engine := newTestEngine(t, store, 2.0, 0.1)

	var insufficient *models.InsufficientHistoryError
	if _, err := engine.PredictMultiHorizon("room-01", []int{7}); !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientHistoryError, got %v", err)
	}

	// The failure must not be served from cache once history catches up.
	store.window = testWindow(5)
	if _, err := engine.PredictMultiHorizon("room-01", []int{7}); err != nil {
		t.Errorf("Expected success after history grew, got %v", err)
	}
	if store.calls != 2 {
		t.Errorf("Expected history re-read after a failure, got %d reads", store.calls)
	}
}

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		want    float64
	}{
		{"too few observations", []float64{1.2}, defaultGrowthRate},
		{"declining floors at zero", []float64{1.5, 1.4, 1.3}, 0},
		{"steady growth", []float64{1.0, 1.1, 1.2, 1.3}, (1.3 - 1.0) / 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			window := make([]models.Observation, len(tt.weights))
			for i, w := range tt.weights {
				window[i] = models.Observation{
					Timestamp: base.AddDate(0, 0, i),
					Values:    map[string]float64{models.MetricWeight: w},
				}
			}
			if got := growthRate(window); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("growthRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLatestWeight_FallbackWhenAbsent(t *testing.T) {
	window := []models.Observation{
		{Values: map[string]float64{models.MetricTemperature: 23}},
	}
	if got := latestWeight(window); got != fallbackWeight {
		t.Errorf("Expected fallback weight %v, got %v", fallbackWeight, got)
	}
}
