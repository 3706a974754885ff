package detector

import (
	"math"
	"math/rand"

	"flockwatch/internal/logger"
)

const (
	defaultTreeCount     = 100
	defaultSubsampleSize = 256
	minIsolationSamples  = 10
)

// eulerMascheroni for the average unsuccessful-search path length.
const eulerMascheroni = 0.5772156649

type isoNode struct {
	// internal node
	splitFeature int
	splitValue   float64
	left, right  *isoNode
	// external node
	size int
}

// IsolationForestDetector isolates observations by random partitioning.
// Points that isolate in few splits score as anomalous.
type IsolationForestDetector struct {
	treeCount     int
	subsampleSize int
	log           *logger.Logger
	rng           *rand.Rand

	trees   []*isoNode
	sampleN int
	trained bool
}

// NewIsolationForestDetector seeds the forest deterministically so that
// repeated fits on the same data build the same trees.
func NewIsolationForestDetector(log *logger.Logger) *IsolationForestDetector {
	return &IsolationForestDetector{
		treeCount:     defaultTreeCount,
		subsampleSize: defaultSubsampleSize,
		log:           log,
		rng:           rand.New(rand.NewSource(42)),
	}
}

// Fit builds the forest. Fewer than ten samples leaves the detector
// untrained; the ensemble zero-weights it.
func (d *IsolationForestDetector) Fit(data [][]float64) {
	if len(data) < minIsolationSamples {
		d.log.Warn("training data too small for isolation forest", "samples", len(data), "min", minIsolationSamples)
		return
	}

	sampleN := d.subsampleSize
	if sampleN > len(data) {
		sampleN = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleN))))

	d.trees = make([]*isoNode, d.treeCount)
	for i := range d.trees {
		sample := make([][]float64, sampleN)
		for j := range sample {
			sample[j] = data[d.rng.Intn(len(data))]
		}
		d.trees[i] = d.buildTree(sample, 0, maxDepth)
	}
	d.sampleN = sampleN
	d.trained = true
	d.log.Info("isolation forest trained", "samples", len(data), "features", len(data[0]), "trees", d.treeCount)
}

func (d *IsolationForestDetector) buildTree(data [][]float64, depth, maxDepth int) *isoNode {
	if depth >= maxDepth || len(data) <= 1 {
		return &isoNode{size: len(data)}
	}

	feature := d.rng.Intn(len(data[0]))
	min, max := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < min {
			min = row[feature]
		}
		if row[feature] > max {
			max = row[feature]
		}
	}
	if max == min {
		return &isoNode{size: len(data)}
	}

	split := min + d.rng.Float64()*(max-min)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isoNode{
		splitFeature: feature,
		splitValue:   split,
		left:         d.buildTree(left, depth+1, maxDepth),
		right:        d.buildTree(right, depth+1, maxDepth),
	}
}

// Trained reports whether Fit succeeded.
func (d *IsolationForestDetector) Trained() bool { return d.trained }

// avgPathLength is c(n), the average unsuccessful-search path length in a
// binary search tree of n nodes.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerMascheroni) - 2*(fn-1)/fn
}

func (d *IsolationForestDetector) pathLength(root *isoNode, row []float64) float64 {
	depth := 0.0
	node := root
	for node.left != nil {
		if row[node.splitFeature] < node.splitValue {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return depth + avgPathLength(node.size)
}

// Scores returns per-row anomaly scores min-max normalized over the batch
// to [0,1]. An untrained detector scores every row 0.
func (d *IsolationForestDetector) Scores(data [][]float64) []float64 {
	if !d.trained {
		return make([]float64, len(data))
	}

	raw := make([]float64, len(data))
	c := avgPathLength(d.sampleN)
	for i, row := range data {
		total := 0.0
		for _, tree := range d.trees {
			total += d.pathLength(tree, row)
		}
		mean := total / float64(len(d.trees))
		// Shorter average paths isolate faster: higher score.
		raw[i] = math.Pow(2, -mean/c)
	}

	return minMaxNormalize(raw)
}
