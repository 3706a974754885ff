package forecast

import (
	"math"

	"flockwatch/internal/models"
)

// featureMetrics are the metrics that expand into current/rolling/lag
// features, in fixed order.
var featureMetrics = []string{
	models.MetricTemperature,
	models.MetricHumidity,
	models.MetricFeed,
	models.MetricWater,
	models.MetricMortality,
	models.MetricEggs,
}

const (
	featureWeightTrend = "weight_trend"
	featureFlockAge    = "flock_age"
)

// BuildFeatures turns a recent observation window (oldest first) into the
// named feature set the models are trained on: current values, 3- and
// 7-day rolling means, 1- and 3-day lags, a weight-trend delta and the
// flock-age cycle position. Metrics entirely absent from the window are
// left unset here; vectorize imputes them with the full-vector mean.
func BuildFeatures(window []models.Observation) map[string]float64 {
	features := make(map[string]float64)
	if len(window) == 0 {
		return features
	}
	latest := window[len(window)-1]

	for _, metric := range featureMetrics {
		col := columnValues(window, metric)
		if len(col) == 0 {
			continue
		}
		colMean := mean(col)

		if v, ok := latest.Values[metric]; ok {
			features[metric+"_current"] = v
		} else {
			features[metric+"_current"] = colMean
		}

		for _, span := range []int{3, 7} {
			features[metric+rollingSuffix(span)] = mean(tail(col, span))
		}

		for _, lag := range []int{1, 3} {
			if len(window) > lag {
				lagged := window[len(window)-1-lag]
				if v, ok := lagged.Values[metric]; ok {
					features[metric+lagSuffix(lag)] = v
				} else {
					features[metric+lagSuffix(lag)] = colMean
				}
			}
		}
	}

	features[featureWeightTrend] = weightTrend(window)

	if age, ok := latest.Values[models.MetricAge]; ok {
		features[featureFlockAge] = age
	} else {
		features[featureFlockAge] = float64(len(window))
	}

	return features
}

// weightTrend is last minus first over the most recent three weight
// observations; zero when fewer than two exist.
func weightTrend(window []models.Observation) float64 {
	weights := columnValues(tailObs(window, 3), models.MetricWeight)
	if len(weights) < 2 {
		return 0
	}
	return weights[len(weights)-1] - weights[0]
}

// vectorize orders features per the model's declared order. Features the
// window could not produce impute with the mean of the ones it could.
func vectorize(features map[string]float64, order []string) []float64 {
	present := make([]float64, 0, len(order))
	for _, name := range order {
		if v, ok := features[name]; ok {
			present = append(present, v)
		}
	}
	fill := 0.0
	if len(present) > 0 {
		fill = mean(present)
	}

	vec := make([]float64, len(order))
	for i, name := range order {
		if v, ok := features[name]; ok && !math.IsNaN(v) {
			vec[i] = v
		} else {
			vec[i] = fill
		}
	}
	return vec
}

func rollingSuffix(span int) string {
	if span == 3 {
		return "_rolling_3d"
	}
	return "_rolling_7d"
}

func lagSuffix(lag int) string {
	if lag == 1 {
		return "_lag_1d"
	}
	return "_lag_3d"
}

// columnValues extracts a metric's present values from the window.
func columnValues(window []models.Observation, metric string) []float64 {
	var out []float64
	for _, obs := range window {
		if v, ok := obs.Values[metric]; ok {
			out = append(out, v)
		}
	}
	return out
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func tailObs(window []models.Observation, n int) []models.Observation {
	if len(window) <= n {
		return window
	}
	return window[len(window)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
