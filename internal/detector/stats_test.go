package detector

import (
	"math"
	"testing"
)

func TestCalculateMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"several", []float64{1, 2, 3, 4}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateMean(tt.values); got != tt.want {
				t.Errorf("calculateMean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := calculateMean(values)
	if got := calculateStdDev(values, mean); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("calculateStdDev() = %v, want 2.0", got)
	}

	if got := calculateStdDev(nil, 0); got != 0 {
		t.Errorf("Expected 0 for empty slice, got %v", got)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{75, 4},
		{100, 5},
		{62.5, 3.5},
	}

	for _, tt := range tests {
		if got := percentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestMinMaxNormalize(t *testing.T) {
	got := minMaxNormalize([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("minMaxNormalize()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMinMaxNormalize_FlatBatch(t *testing.T) {
	// A flat batch has no relative anomaly.
	got := minMaxNormalize([]float64{3, 3, 3, 3})
	for i, v := range got {
		if v != 0 {
			t.Errorf("Expected 0 at index %d for flat batch, got %v", i, v)
		}
	}
}

func TestDiff(t *testing.T) {
	got := diff([]float64{1, 3, 6, 10})
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("diff() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("diff()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if diff([]float64{1}) != nil {
		t.Error("Expected nil for series shorter than 2")
	}
}

func TestColumn(t *testing.T) {
	matrix := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	got := column(matrix, 1)
	want := []float64{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
