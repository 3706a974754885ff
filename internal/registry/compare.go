package registry

import (
	"fmt"

	"flockwatch/internal/models"
)

// Comparable metric names. MAE and RMSE rank lower-is-better; R2 and the
// performance score rank higher-is-better.
const (
	CompareMAE       = "mae"
	CompareRMSE      = "rmse"
	CompareR2        = "r2"
	ComparePerfScore = "performance_score"
)

var lowerIsBetter = map[string]bool{
	CompareMAE:  true,
	CompareRMSE: true,
}

// MetricComparison holds both versions' values for one metric and the
// winning version id ("" on a tie).
type MetricComparison struct {
	Value1 float64 `json:"value1"`
	Value2 float64 `json:"value2"`
	Winner string  `json:"winner"`
}

// Comparison is the full report for two versions.
type Comparison struct {
	Version1       string                      `json:"version1"`
	Version2       string                      `json:"version2"`
	RankedBy       string                      `json:"ranked_by"`
	Metrics        map[string]MetricComparison `json:"metrics"`
	Recommendation string                      `json:"recommendation"`
}

// Compare ranks two versions by the chosen metric and reports per-metric
// winners across all evaluation metrics. The recommendation names the
// winner on the chosen metric; when that metric ties, the majority of
// per-metric wins decides.
func (r *Registry) Compare(id1, id2, metric string) (Comparison, error) {
	v1, _, err := r.GetVersion(id1)
	if err != nil {
		return Comparison{}, err
	}
	v2, _, err := r.GetVersion(id2)
	if err != nil {
		return Comparison{}, err
	}

	values := func(m models.ModelMetrics) map[string]float64 {
		return map[string]float64{
			CompareMAE:       m.TestMAE,
			CompareRMSE:      m.TestRMSE,
			CompareR2:        m.TestR2,
			ComparePerfScore: m.PerformanceScore,
		}
	}
	m1, m2 := values(v1.Metrics), values(v2.Metrics)

	if _, ok := m1[metric]; !ok {
		return Comparison{}, fmt.Errorf("unknown comparison metric %q", metric)
	}

	cmp := Comparison{
		Version1: id1,
		Version2: id2,
		RankedBy: metric,
		Metrics:  make(map[string]MetricComparison),
	}

	wins1, wins2 := 0, 0
	for name, a := range m1 {
		b := m2[name]
		mc := MetricComparison{Value1: a, Value2: b}
		switch {
		case a == b:
			// tie, no winner
		case lowerIsBetter[name] == (a < b):
			mc.Winner = id1
			wins1++
		default:
			mc.Winner = id2
			wins2++
		}
		cmp.Metrics[name] = mc
	}

	switch {
	case cmp.Metrics[metric].Winner == id1:
		cmp.Recommendation = fmt.Sprintf("%s performs better on %s", id1, metric)
	case cmp.Metrics[metric].Winner == id2:
		cmp.Recommendation = fmt.Sprintf("%s performs better on %s", id2, metric)
	case wins1 > wins2:
		cmp.Recommendation = fmt.Sprintf("%s performs better overall", id1)
	case wins2 > wins1:
		cmp.Recommendation = fmt.Sprintf("%s performs better overall", id2)
	default:
		cmp.Recommendation = "versions perform similarly"
	}

	return cmp, nil
}
