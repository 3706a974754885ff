package detector

import (
	"time"

	"flockwatch/internal/config"
	"flockwatch/internal/logger"
	"flockwatch/internal/metrics"
	"flockwatch/internal/models"
)

// tsChangeThreshold is the z-score bound for trend-break and
// velocity-change detection inside the ensemble.
const tsChangeThreshold = 2.0

// Weights assigns each sub-detector's share of the combined score.
type Weights struct {
	Isolation   float64
	Density     float64
	Statistical float64
	TimeSeries  float64
}

// Ensemble combines four independent detectors into one normalized score
// per row. Fit once, then score; a single instance is not safe for
// concurrent mutation, so callers use per-call instances or synchronize.
type Ensemble struct {
	cfg config.EnsembleConfig
	log *logger.Logger

	isolation   *IsolationForestDetector
	density     *DensityDetector
	statistical *StatisticalDetector
	timeseries  *TimeSeriesDetector
	tsColumn    int
}

// NewEnsemble builds an ensemble from the tunable config.
func NewEnsemble(cfg config.EnsembleConfig, log *logger.Logger) *Ensemble {
	return &Ensemble{
		cfg:         cfg,
		log:         log,
		isolation:   NewIsolationForestDetector(log),
		density:     NewDensityDetector(cfg.NeighborCount, log),
		statistical: NewStatisticalDetector(cfg.ZScoreThreshold, cfg.IQRMultiplier, log),
		timeseries:  NewTimeSeriesDetector(cfg.WindowSize, cfg.SeasonLength, cfg.ARCoefficient, log),
		tsColumn:    -1,
	}
}

// Fit trains all four sub-detectors independently. A detector that lacks
// enough data stays untrained and simply contributes nothing; that is
// local recovery, never an error. tsColumn < 0 disables the time-series
// detector.
func (e *Ensemble) Fit(data [][]float64, tsColumn int) {
	e.isolation.Fit(data)
	e.density.Fit(data)
	e.statistical.Fit(data)

	e.tsColumn = -1
	if tsColumn >= 0 && len(data) > 0 && tsColumn < len(data[0]) {
		e.timeseries.Fit(column(data, tsColumn))
		e.tsColumn = tsColumn
	}
}

// DefaultWeights returns the configured detector weights.
func (e *Ensemble) DefaultWeights() Weights {
	return Weights{
		Isolation:   e.cfg.Weights.Isolation,
		Density:     e.cfg.Weights.Density,
		Statistical: e.cfg.Weights.Statistical,
		TimeSeries:  e.cfg.Weights.TimeSeries,
	}
}

// Detect scores each row with the configured weights.
func (e *Ensemble) Detect(data [][]float64) []float64 {
	return e.DetectWithWeights(data, e.DefaultWeights())
}

// DetectWithWeights computes the weighted per-row score in [0,1]. Only
// detectors that actually trained contribute; their weights alone form
// the normalizing divisor.
func (e *Ensemble) DetectWithWeights(data [][]float64, w Weights) []float64 {
	scores, _ := e.detect(data, w)
	return scores
}

// Sub-detector names used for the contributing-method tag.
const (
	MethodIsolation   = "isolation"
	MethodDensity     = "density"
	MethodStatistical = "statistical"
	MethodTimeSeries  = "timeseries"
)

// detect returns per-row scores and, for each row, the name of the
// detector with the largest weighted contribution.
func (e *Ensemble) detect(data [][]float64, w Weights) ([]float64, []string) {
	start := time.Now()
	defer func() {
		metrics.DetectDuration.Observe(time.Since(start).Seconds())
	}()

	scores := make([]float64, len(data))
	top := make([]float64, len(data))
	methods := make([]string, len(data))
	divisor := 0.0

	add := func(i int, contribution float64, method string) {
		scores[i] += contribution
		if contribution > top[i] {
			top[i] = contribution
			methods[i] = method
		}
	}

	if w.Isolation > 0 && e.isolation.Trained() {
		for i, s := range e.isolation.Scores(data) {
			add(i, w.Isolation*s, MethodIsolation)
		}
		divisor += w.Isolation
	}

	if w.Density > 0 && e.density.Trained() {
		for i, s := range e.density.Scores(data) {
			add(i, w.Density*s, MethodDensity)
		}
		divisor += w.Density
	}

	if w.Statistical > 0 && e.statistical.Trained() {
		for i, flagged := range e.statistical.Flags(data) {
			if flagged {
				add(i, w.Statistical, MethodStatistical)
			}
		}
		divisor += w.Statistical
	}

	if w.TimeSeries > 0 && e.timeseries.Trained() && e.tsColumn >= 0 && len(data) > 0 && e.tsColumn < len(data[0]) {
		for i, flagged := range e.timeseries.Flags(column(data, e.tsColumn), tsChangeThreshold) {
			if flagged {
				add(i, w.TimeSeries, MethodTimeSeries)
			}
		}
		divisor += w.TimeSeries
	}

	if divisor == 0 {
		return scores, methods
	}
	for i := range scores {
		scores[i] /= divisor
		if scores[i] < 0 {
			scores[i] = 0
		}
		if scores[i] > 1 {
			scores[i] = 1
		}
	}
	return scores, methods
}

// Severity buckets a score with the configured thresholds.
func (e *Ensemble) Severity(score float64) string {
	switch {
	case score > e.cfg.Severity.High:
		return models.SeverityHigh
	case score > e.cfg.Severity.Medium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Results maps batch scores to AnomalyResult records for the alerting
// collaborator. Rows scoring zero are skipped.
func (e *Ensemble) Results(entityID, metric string, timestamps []time.Time, data [][]float64) []models.AnomalyResult {
	scores, methods := e.detect(data, e.DefaultWeights())

	var results []models.AnomalyResult
	for i, score := range scores {
		if score == 0 {
			continue
		}
		ts := time.Time{}
		if i < len(timestamps) {
			ts = timestamps[i]
		}
		severity := e.Severity(score)
		results = append(results, models.AnomalyResult{
			EntityID:  entityID,
			Metric:    metric,
			Timestamp: ts,
			Score:     score,
			Severity:  severity,
			Method:    methods[i],
		})
		metrics.AnomaliesFoundTotal.WithLabelValues(severity).Inc()
	}
	return results
}
