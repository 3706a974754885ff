package detector

import (
	"math"
	"sort"

	"flockwatch/internal/logger"
)

const (
	defaultNeighborCount = 20
	minNeighborCount     = 5
)

// DensityDetector flags rows whose local density is low relative to their
// neighborhood (local-outlier-factor style). Scoring runs over the
// combined train+test set so test rows are judged against real context.
type DensityDetector struct {
	neighborCount int
	log           *logger.Logger

	training [][]float64
	trained  bool
}

// NewDensityDetector clamps the neighbor count to a floor of five.
func NewDensityDetector(neighborCount int, log *logger.Logger) *DensityDetector {
	if neighborCount < minNeighborCount {
		neighborCount = minNeighborCount
	}
	return &DensityDetector{neighborCount: neighborCount, log: log}
}

// Fit stores the reference data. Needs at least neighborCount+1 samples;
// anything less leaves the detector untrained.
func (d *DensityDetector) Fit(data [][]float64) {
	if len(data) < d.neighborCount+1 {
		d.log.Warn("training data too small for density detector", "samples", len(data), "min", d.neighborCount+1)
		return
	}
	d.training = make([][]float64, len(data))
	for i, row := range data {
		d.training[i] = append([]float64(nil), row...)
	}
	d.trained = true
	d.log.Info("density detector ready", "samples", len(data), "neighbors", d.neighborCount)
}

// Trained reports whether Fit succeeded.
func (d *DensityDetector) Trained() bool { return d.trained }

// Scores returns per-row outlier-factor scores for the test rows, min-max
// normalized over the batch to [0,1].
func (d *DensityDetector) Scores(data [][]float64) []float64 {
	if !d.trained {
		return make([]float64, len(data))
	}

	combined := make([][]float64, 0, len(d.training)+len(data))
	combined = append(combined, d.training...)
	combined = append(combined, data...)

	factors := localOutlierFactors(combined, d.neighborCount)
	testFactors := factors[len(d.training):]
	return minMaxNormalize(testFactors)
}

// localOutlierFactors computes the LOF of every point in data.
func localOutlierFactors(data [][]float64, k int) []float64 {
	n := len(data)
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		return make([]float64, n)
	}

	// Pairwise distances; the batch sizes here are small enough that the
	// quadratic cost is irrelevant.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(data[i], data[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	type neighbor struct {
		idx  int
		dist float64
	}
	neighbors := make([][]neighbor, n)
	kDist := make([]float64, n)
	for i := 0; i < n; i++ {
		all := make([]neighbor, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				all = append(all, neighbor{idx: j, dist: dist[i][j]})
			}
		}
		sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })
		neighbors[i] = all[:k]
		kDist[i] = all[k-1].dist
	}

	// Local reachability density. The epsilon keeps duplicate points from
	// producing infinite densities; identical batches then flatten to a
	// constant factor and normalize to zero.
	lrd := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, nb := range neighbors[i] {
			reach := dist[i][nb.idx]
			if kDist[nb.idx] > reach {
				reach = kDist[nb.idx]
			}
			sum += reach
		}
		lrd[i] = float64(k) / (sum + 1e-10)
	}

	factors := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, nb := range neighbors[i] {
			sum += lrd[nb.idx]
		}
		factors[i] = sum / (float64(k) * lrd[i])
	}
	return factors
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
