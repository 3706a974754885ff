package detector

import (
	"testing"
	"time"

	"flockwatch/internal/config"
	"flockwatch/internal/logger"
	"flockwatch/internal/models"
)

func newTestEnsemble() *Ensemble {
	return NewEnsemble(config.Default().Ensemble, logger.NewNop())
}

func TestEnsemble_IdenticalRowsScoreZero(t *testing.T) {
	data := identicalRows(25)

	ens := newTestEnsemble()
	ens.Fit(data, 0)

	for i, score := range ens.Detect(data) {
		if score != 0 {
			t.Errorf("Expected score 0 for identical rows, got %v at %d", score, i)
		}
	}
}

func TestEnsemble_ScoresWithinUnitInterval(t *testing.T) {
	data := clusterWithOutlier(30)

	ens := newTestEnsemble()
	ens.Fit(data, 0)

	scores := ens.Detect(data)
	outlierIdx := len(data) - 1
	for i, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("Score out of [0,1] at %d: %v", i, s)
		}
	}
	if scores[outlierIdx] == 0 {
		t.Error("Expected the outlier row to score above 0")
	}
	for i, s := range scores {
		if i != outlierIdx && s > scores[outlierIdx] {
			t.Errorf("Cluster row %d scored %v above the outlier's %v", i, s, scores[outlierIdx])
		}
	}
}

func TestEnsemble_UntrainedDetectorsExcludedFromDivisor(t *testing.T) {
	// Five rows: too few for the isolation forest and density detectors,
	// no time-series column. Only the statistical weight remains, so a
	// flagged row must score its full weighted share, 1.0.
	data := [][]float64{{10}, {10}, {10}, {10}, {1000}}

	ens := newTestEnsemble()
	ens.Fit(data, -1)

	scores := ens.Detect(data)
	if scores[4] != 1 {
		t.Errorf("Expected flagged row to score 1.0 against the reduced divisor, got %v", scores[4])
	}
	for i := 0; i < 4; i++ {
		if scores[i] != 0 {
			t.Errorf("Expected unflagged row %d to score 0, got %v", i, scores[i])
		}
	}
}

func TestEnsemble_NoTrainedDetectorsScoresZero(t *testing.T) {
	ens := newTestEnsemble()
	ens.Fit(nil, -1)

	for i, s := range ens.Detect([][]float64{{1e9}, {0}}) {
		if s != 0 {
			t.Errorf("Expected 0 with no trained detectors, got %v at %d", s, i)
		}
	}
}

func TestEnsemble_CustomWeights(t *testing.T) {
	data := [][]float64{{10}, {10}, {10}, {10}, {1000}}

	ens := newTestEnsemble()
	ens.Fit(data, -1)

	// Zeroing the statistical weight silences the only trained detector.
	w := ens.DefaultWeights()
	w.Statistical = 0
	for i, s := range ens.DetectWithWeights(data, w) {
		if s != 0 {
			t.Errorf("Expected 0 with the trained detector zero-weighted, got %v at %d", s, i)
		}
	}
}

func TestEnsemble_Severity(t *testing.T) {
	ens := newTestEnsemble()

	tests := []struct {
		score float64
		want  string
	}{
		{0.9, models.SeverityHigh},
		{0.81, models.SeverityHigh},
		{0.8, models.SeverityMedium},
		{0.7, models.SeverityMedium},
		{0.6, models.SeverityLow},
		{0.1, models.SeverityLow},
	}

	for _, tt := range tests {
		if got := ens.Severity(tt.score); got != tt.want {
			t.Errorf("Severity(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestEnsemble_ResultsSkipZeroScores(t *testing.T) {
	data := [][]float64{{10}, {10}, {10}, {10}, {1000}}
	timestamps := make([]time.Time, len(data))
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range timestamps {
		timestamps[i] = base.AddDate(0, 0, i)
	}

	ens := newTestEnsemble()
	ens.Fit(data, -1)

	results := ens.Results("room-01", "multivariate", timestamps, data)
	if len(results) != 1 {
		t.Fatalf("Expected exactly 1 result, got %d", len(results))
	}

	r := results[0]
	if r.EntityID != "room-01" {
		t.Errorf("Expected entity room-01, got %q", r.EntityID)
	}
	if !r.Timestamp.Equal(timestamps[4]) {
		t.Errorf("Expected timestamp of the flagged row, got %v", r.Timestamp)
	}
	if r.Severity != models.SeverityHigh {
		t.Errorf("Expected high severity for score %v, got %q", r.Score, r.Severity)
	}
	if r.Method != MethodStatistical {
		t.Errorf("Expected dominant method %q, got %q", MethodStatistical, r.Method)
	}
}
