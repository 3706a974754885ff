package registry

import (
	"strings"
	"testing"

	"flockwatch/internal/logger"
)

// compareRegistry holds vA (better error metrics) and vB (better fit
// metrics) so the ranking metric genuinely changes the outcome.
func compareRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	writeVersion(t, dir, "vA", testMetrics(0.08, 0.11, 0.90, 0.85, "2026-08-01T10:00:00Z"))
	writeVersion(t, dir, "vB", testMetrics(0.10, 0.13, 0.95, 0.88, "2026-08-10T10:00:00Z"))

	reg, err := New(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return reg
}

func TestCompare_RecommendationFollowsChosenMetric(t *testing.T) {
	reg := compareRegistry(t)

	byR2, err := reg.Compare("vA", "vB", CompareR2)
	if err != nil {
		t.Fatalf("Compare(r2) error = %v", err)
	}
	if !strings.Contains(byR2.Recommendation, "vB") {
		t.Errorf("Expected vB recommended on r2, got %q", byR2.Recommendation)
	}

	byMAE, err := reg.Compare("vA", "vB", CompareMAE)
	if err != nil {
		t.Fatalf("Compare(mae) error = %v", err)
	}
	if !strings.Contains(byMAE.Recommendation, "vA") {
		t.Errorf("Expected vA recommended on mae, got %q", byMAE.Recommendation)
	}
}

func TestCompare_PerMetricWinners(t *testing.T) {
	reg := compareRegistry(t)

	cmp, err := reg.Compare("vA", "vB", ComparePerfScore)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	wantWinners := map[string]string{
		CompareMAE:       "vA", // lower is better
		CompareRMSE:      "vA",
		CompareR2:        "vB", // higher is better
		ComparePerfScore: "vB",
	}
	for metric, want := range wantWinners {
		if got := cmp.Metrics[metric].Winner; got != want {
			t.Errorf("Winner on %s = %q, want %q", metric, got, want)
		}
	}
}

func TestCompare_TieFallsBackToMajority(t *testing.T) {
	dir := t.TempDir()
	// Same r2, but vB wins mae, rmse and score.
	writeVersion(t, dir, "vA", testMetrics(0.10, 0.13, 0.92, 0.85, "2026-08-01T10:00:00Z"))
	writeVersion(t, dir, "vB", testMetrics(0.08, 0.11, 0.92, 0.88, "2026-08-10T10:00:00Z"))

	reg, err := New(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cmp, err := reg.Compare("vA", "vB", CompareR2)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.Metrics[CompareR2].Winner != "" {
		t.Errorf("Expected r2 tie, got winner %q", cmp.Metrics[CompareR2].Winner)
	}
	if !strings.Contains(cmp.Recommendation, "vB") || !strings.Contains(cmp.Recommendation, "overall") {
		t.Errorf("Expected majority fallback recommending vB overall, got %q", cmp.Recommendation)
	}
}

func TestCompare_IdenticalMetricsSimilar(t *testing.T) {
	dir := t.TempDir()
	m := testMetrics(0.08, 0.11, 0.92, 0.85, "2026-08-01T10:00:00Z")
	writeVersion(t, dir, "vA", m)
	writeVersion(t, dir, "vB", m)

	reg, err := New(dir, logger.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cmp, err := reg.Compare("vA", "vB", CompareMAE)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.Recommendation != "versions perform similarly" {
		t.Errorf("Expected similar verdict, got %q", cmp.Recommendation)
	}
}

func TestCompare_UnknownMetric(t *testing.T) {
	reg := compareRegistry(t)

	if _, err := reg.Compare("vA", "vB", "accuracy"); err == nil {
		t.Error("Expected error for unknown comparison metric")
	}
}

func TestCompare_MissingVersion(t *testing.T) {
	reg := compareRegistry(t)

	if _, err := reg.Compare("vA", "vZ", CompareMAE); !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}
