package models

import "time"

// Metric names the ingestion collaborator produces for every entity.
const (
	MetricTemperature = "temperature_c"
	MetricHumidity    = "humidity_pct"
	MetricFeed        = "feed_kg_total"
	MetricWater       = "water_liters_total"
	MetricMortality   = "mortality_rate"
	MetricEggs        = "eggs_produced"
	MetricWeight      = "avg_weight_kg"
	MetricAge         = "age_days"
)

// MetricColumns is the fixed column order used when metric rows are
// assembled into feature matrices.
var MetricColumns = []string{
	MetricTemperature,
	MetricHumidity,
	MetricFeed,
	MetricWater,
	MetricMortality,
	MetricEggs,
	MetricWeight,
	MetricAge,
}

// MetricRow is one observation for one entity's metric at one timestamp.
type MetricRow struct {
	ID        int64     `json:"id"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

// Observation is a full day of metric values for an entity, keyed by
// metric name. Missing metrics are simply absent from the map.
type Observation struct {
	EntityID  string             `json:"entity_id"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Model lifecycle statuses.
const (
	StatusTrained  = "trained"
	StatusDeployed = "deployed"
	StatusArchived = "archived"
)

// ModelMetrics holds the evaluation metrics the training collaborator
// records alongside every artifact set.
type ModelMetrics struct {
	ModelType        string  `json:"model_type"`
	TestMAE          float64 `json:"test_mae"`
	TestRMSE         float64 `json:"test_rmse"`
	TestR2           float64 `json:"test_r2"`
	PerformanceScore float64 `json:"performance_score"`
	NSamples         int     `json:"n_samples"`
	TrainedAt        string  `json:"trained_at"`
}

// ModelVersion is the registry's metadata record for one trained model.
// Everything except IsActive and Status is immutable once registered.
type ModelVersion struct {
	ID           string       `json:"id"`
	ModelType    string       `json:"model_type"`
	TrainedAt    time.Time    `json:"trained_at"`
	Metrics      ModelMetrics `json:"metrics"`
	Features     []string     `json:"features"`
	ArtifactPath string       `json:"artifact_path"`
	IsActive     bool         `json:"is_active"`
	Status       string       `json:"status"`
}

// Severity buckets for anomaly scores.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnomalyResult is one scored row, ready for the alerting collaborator.
type AnomalyResult struct {
	ID        int64     `json:"id"`
	EntityID  string    `json:"entity_id"`
	Metric    string    `json:"metric"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Severity  string    `json:"severity"`
	Method    string    `json:"method"`
}

// ForecastDay is one predicted day inside a horizon.
// Lower <= Predicted <= Upper always holds.
type ForecastDay struct {
	Offset    int     `json:"offset"`
	Predicted float64 `json:"predicted"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
}

// ForecastResult is a full multi-day forecast for one entity and metric.
type ForecastResult struct {
	EntityID    string        `json:"entity_id"`
	Metric      string        `json:"metric"`
	HorizonDays int           `json:"horizon_days"`
	Days        []ForecastDay `json:"days"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Warning is a rule-layer finding, distinct from scored anomaly detection.
type Warning struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}
