package detector

import (
	"math"
	"sort"

	"flockwatch/internal/logger"
)

// StatisticalDetector flags rows by per-feature z-score and Tukey-fence
// membership. It yields a boolean membership, not a continuous score.
type StatisticalDetector struct {
	zScoreThreshold float64
	iqrMultiplier   float64
	log             *logger.Logger

	means   []float64
	stds    []float64
	q1s     []float64
	q3s     []float64
	iqrs    []float64
	trained bool
}

// NewStatisticalDetector builds a detector with the given thresholds
// (typically 3.0 z-score and 1.5 IQR).
func NewStatisticalDetector(zScoreThreshold, iqrMultiplier float64, log *logger.Logger) *StatisticalDetector {
	return &StatisticalDetector{
		zScoreThreshold: zScoreThreshold,
		iqrMultiplier:   iqrMultiplier,
		log:             log,
	}
}

// Fit computes per-feature mean/std and quartiles from training data.
func (d *StatisticalDetector) Fit(data [][]float64) {
	if len(data) == 0 {
		d.log.Warn("no training data for statistical detector")
		return
	}

	features := len(data[0])
	d.means = make([]float64, features)
	d.stds = make([]float64, features)
	d.q1s = make([]float64, features)
	d.q3s = make([]float64, features)
	d.iqrs = make([]float64, features)

	for f := 0; f < features; f++ {
		col := column(data, f)
		d.means[f] = calculateMean(col)
		d.stds[f] = calculateStdDev(col, d.means[f])

		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		d.q1s[f] = percentile(sorted, 25)
		d.q3s[f] = percentile(sorted, 75)
		d.iqrs[f] = d.q3s[f] - d.q1s[f]
	}

	d.trained = true
	d.log.Info("statistical detector trained", "samples", len(data), "features", features)
}

// Trained reports whether Fit succeeded.
func (d *StatisticalDetector) Trained() bool { return d.trained }

// Flags marks each row anomalous if ANY feature's |z-score| exceeds the
// threshold or falls outside the Tukey fences.
func (d *StatisticalDetector) Flags(data [][]float64) []bool {
	flags := make([]bool, len(data))
	if !d.trained {
		return flags
	}

	for i, row := range data {
		for f, v := range row {
			if f >= len(d.means) {
				break
			}
			z := math.Abs(v-d.means[f]) / (d.stds[f] + 1e-8)
			if z > d.zScoreThreshold {
				flags[i] = true
				break
			}
			lower := d.q1s[f] - d.iqrMultiplier*d.iqrs[f]
			upper := d.q3s[f] + d.iqrMultiplier*d.iqrs[f]
			if v < lower || v > upper {
				flags[i] = true
				break
			}
		}
	}
	return flags
}
