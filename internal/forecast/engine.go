package forecast

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flockwatch/internal/cache"
	"flockwatch/internal/config"
	"flockwatch/internal/logger"
	"flockwatch/internal/metrics"
	"flockwatch/internal/models"
	"flockwatch/internal/registry"
)

// defaultGrowthRate stands in when the window has too few weight
// observations to estimate a day-over-day delta (kg/day).
const defaultGrowthRate = 0.025

// fallbackWeight is used when the window carries no weight metric at all.
const fallbackWeight = 2.5

// HistoryStore supplies recent observations for an entity, oldest first.
// A missing entity yields models.ErrNotFound.
type HistoryStore interface {
	RecentWindow(entityID string, asOf time.Time, days int) ([]models.Observation, error)
}

// Engine produces point and multi-horizon forecasts by blending the
// active model's prediction with a trend extrapolation.
type Engine struct {
	cfg       config.ForecastConfig
	history   HistoryStore
	reg       *registry.Registry
	artifacts *cache.ModelCache
	responses *cache.PredictionCache
	log       *logger.Logger
	now       func() time.Time
}

// NewEngine wires the engine to its collaborators. All of them are
// injected handles; the engine owns no global state.
func NewEngine(cfg config.ForecastConfig, history HistoryStore, reg *registry.Registry, artifacts *cache.ModelCache, responses *cache.PredictionCache, log *logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		history:   history,
		reg:       reg,
		artifacts: artifacts,
		responses: responses,
		log:       log,
		now:       time.Now,
	}
}

// RecentWindow loads the entity's recent observations. Fewer than the
// configured minimum fails with InsufficientHistoryError.
func (e *Engine) RecentWindow(entityID string, asOf time.Time) ([]models.Observation, error) {
	window, err := e.history.RecentWindow(entityID, asOf, e.cfg.WindowDays)
	if err != nil {
		return nil, err
	}
	if len(window) < e.cfg.MinObservations {
		return nil, &models.InsufficientHistoryError{
			EntityID: entityID,
			Have:     len(window),
			Need:     e.cfg.MinObservations,
		}
	}
	return window, nil
}

// PredictSingle runs the active model on a feature set and returns the
// point prediction with its confidence interval. The half-width is the
// configured multiple of the model's registered test MAE.
func (e *Engine) PredictSingle(features map[string]float64) (point, lower, upper float64, err error) {
	version, err := e.reg.Active()
	if err != nil {
		return 0, 0, 0, err
	}

	artifact, err := e.artifacts.Get(version.ArtifactPath)
	if err != nil {
		return 0, 0, 0, err
	}

	vec := vectorize(features, artifact.FeatureOrder)
	scaled, err := artifact.Scaler.Transform(vec)
	if err != nil {
		return 0, 0, 0, err
	}
	point, err = artifact.Model.Predict(scaled)
	if err != nil {
		return 0, 0, 0, err
	}

	margin := e.cfg.ConfidenceMultiplier * version.Metrics.TestMAE
	return point, point - margin, point + margin, nil
}

// PredictMultiHorizon forecasts the entity's weight for every configured
// horizon. Responses are cached; the computation runs only on misses.
func (e *Engine) PredictMultiHorizon(entityID string, horizons []int) ([]models.ForecastResult, error) {
	if len(horizons) == 0 {
		horizons = e.cfg.Horizons
	}

	params := map[string]string{
		"entity":   entityID,
		"horizons": joinInts(horizons),
	}
	value, err := e.responses.Cached("predict_multi_horizon", params, func() (interface{}, error) {
		return e.predictMultiHorizon(entityID, horizons)
	})
	if err != nil {
		return nil, err
	}
	return value.([]models.ForecastResult), nil
}

func (e *Engine) predictMultiHorizon(entityID string, horizons []int) ([]models.ForecastResult, error) {
	start := time.Now()
	defer func() {
		metrics.ForecastDuration.Observe(time.Since(start).Seconds())
	}()

	window, err := e.RecentWindow(entityID, e.now())
	if err != nil {
		return nil, err
	}

	base := BuildFeatures(window)
	currentWeight := latestWeight(window)
	growthRate := growthRate(window)

	results := make([]models.ForecastResult, 0, len(horizons))
	for _, horizon := range horizons {
		days := make([]models.ForecastDay, 0, horizon)
		for day := 1; day <= horizon; day++ {
			features := copyFeatures(base)
			features[featureFlockAge] += float64(day)

			point, _, _, err := e.PredictSingle(features)
			if err != nil {
				return nil, err
			}

			trend := currentWeight + growthRate*float64(day)
			blended := e.cfg.ModelBlendWeight*point + (1-e.cfg.ModelBlendWeight)*trend

			// Flat presentation band, distinct from the single-step
			// confidence interval.
			band := e.cfg.DisplayBandPct * abs(blended)
			days = append(days, models.ForecastDay{
				Offset:    day,
				Predicted: blended,
				Lower:     blended - band,
				Upper:     blended + band,
			})
		}
		results = append(results, models.ForecastResult{
			EntityID:    entityID,
			Metric:      models.MetricWeight,
			HorizonDays: horizon,
			Days:        days,
			GeneratedAt: e.now(),
		})
	}

	e.log.Info("multi-horizon forecast generated",
		"entity", entityID, "horizons", joinInts(horizons), "growth_rate", fmt.Sprintf("%.4f", growthRate))
	return results, nil
}

// latestWeight returns the newest weight observation in the window.
func latestWeight(window []models.Observation) float64 {
	for i := len(window) - 1; i >= 0; i-- {
		if v, ok := window[i].Values[models.MetricWeight]; ok {
			return v
		}
	}
	return fallbackWeight
}

// growthRate estimates the average day-over-day weight delta over the
// last seven observations, floored at zero.
func growthRate(window []models.Observation) float64 {
	weights := columnValues(tailObs(window, 7), models.MetricWeight)
	if len(weights) < 2 {
		return defaultGrowthRate
	}
	rate := (weights[len(weights)-1] - weights[0]) / float64(len(weights))
	if rate < 0 {
		return 0
	}
	return rate
}

func copyFeatures(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
