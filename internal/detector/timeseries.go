package detector

import (
	"math"

	"flockwatch/internal/logger"
)

// TimeSeriesDetector flags temporal anomalies in a single designated
// series: trend breaks, velocity changes and seasonal deviations. It also
// exposes a lightweight autoregressive residual.
type TimeSeriesDetector struct {
	windowSize    int
	seasonLength  int
	arCoefficient float64
	log           *logger.Logger

	rollingMean []float64
	rollingStd  []float64
	seriesMean  float64
	seriesStd   float64
	trained     bool
}

// NewTimeSeriesDetector builds a detector with the given rolling window,
// season length and autoregressive coefficient.
func NewTimeSeriesDetector(windowSize, seasonLength int, arCoefficient float64, log *logger.Logger) *TimeSeriesDetector {
	return &TimeSeriesDetector{
		windowSize:    windowSize,
		seasonLength:  seasonLength,
		arCoefficient: arCoefficient,
		log:           log,
	}
}

// Fit computes rolling statistics. A series shorter than window+1 leaves
// the detector untrained.
func (d *TimeSeriesDetector) Fit(series []float64) {
	if len(series) < d.windowSize+1 {
		d.log.Warn("time series too short for fitting", "points", len(series), "min", d.windowSize+1)
		return
	}

	d.rollingMean = make([]float64, len(series))
	d.rollingStd = make([]float64, len(series))
	for i := range series {
		start := i - d.windowSize + 1
		if start < 0 {
			start = 0
		}
		window := series[start : i+1]
		d.rollingMean[i] = calculateMean(window)
		d.rollingStd[i] = calculateStdDev(window, d.rollingMean[i])
	}
	d.seriesMean = calculateMean(series)
	d.seriesStd = calculateStdDev(series, d.seriesMean)
	d.trained = true
	d.log.Info("time-series detector fitted", "points", len(series))
}

// Trained reports whether Fit succeeded.
func (d *TimeSeriesDetector) Trained() bool { return d.trained }

// TrendBreaks returns indices where the second difference's z-score
// exceeds threshold.
func (d *TimeSeriesDetector) TrendBreaks(series []float64, threshold float64) []int {
	if len(series) < 3 {
		return nil
	}
	acceleration := diff(diff(series))
	mean := calculateMean(acceleration)
	std := calculateStdDev(acceleration, mean)
	if std == 0 {
		return nil
	}

	var breaks []int
	for i, a := range acceleration {
		if math.Abs(a-mean)/std > threshold {
			// Two differences shift indices by two.
			breaks = append(breaks, i+2)
		}
	}
	return breaks
}

// VelocityChanges returns indices where the first difference's z-score
// exceeds threshold.
func (d *TimeSeriesDetector) VelocityChanges(series []float64, threshold float64) []int {
	if len(series) < 2 {
		return nil
	}
	velocity := diff(series)
	mean := calculateMean(velocity)
	std := calculateStdDev(velocity, mean)
	if std == 0 {
		return nil
	}

	var changes []int
	for i, v := range velocity {
		if math.Abs(v-mean)/std > threshold {
			changes = append(changes, i+1)
		}
	}
	return changes
}

// SeasonalDeviations compares each point with its counterpart one season
// back and flags deviations beyond two standard deviations.
func (d *TimeSeriesDetector) SeasonalDeviations(series []float64) []int {
	if len(series) < d.seasonLength*2 {
		return nil
	}
	std := calculateStdDev(series, calculateMean(series))
	if std == 0 {
		return nil
	}

	var deviations []int
	for i := d.seasonLength; i < len(series); i++ {
		expected := series[i-d.seasonLength]
		if math.Abs(series[i]-expected)/std > 2.0 {
			deviations = append(deviations, i)
		}
	}
	return deviations
}

// Residuals returns autoregressive one-step residuals using the fixed
// coefficient: predicted = mean + coef*(prev - mean).
func (d *TimeSeriesDetector) Residuals(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	mean := calculateMean(series)
	residuals := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		predicted := mean + d.arCoefficient*(series[i-1]-mean)
		residuals[i-1] = series[i] - predicted
	}
	return residuals
}

// Flags unions trend-break, velocity-change and seasonal-deviation hits
// over the batch series into a per-row membership.
func (d *TimeSeriesDetector) Flags(series []float64, threshold float64) []bool {
	flags := make([]bool, len(series))
	if !d.trained {
		return flags
	}
	for _, idx := range d.TrendBreaks(series, threshold) {
		flags[idx] = true
	}
	for _, idx := range d.VelocityChanges(series, threshold) {
		flags[idx] = true
	}
	for _, idx := range d.SeasonalDeviations(series) {
		flags[idx] = true
	}
	return flags
}
