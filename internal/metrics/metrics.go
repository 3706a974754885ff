package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics
var (
	// CacheHitsTotal tracks cache hits per cache ("model" or "prediction")
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// CacheMissesTotal tracks cache misses per cache
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// CacheEvictionsTotal tracks evictions, labeled by reason (ttl, capacity)
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache", "reason"},
	)

	// ModelLoadsTotal tracks artifact loads from persistent storage
	ModelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_loads_total",
			Help: "Total number of model artifact loads from storage",
		},
		[]string{"status"},
	)

	// ModelLoadDuration tracks how long artifact deserialization takes
	ModelLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_load_duration_seconds",
			Help:    "Duration of model artifact loads in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Engine metrics
var (
	// DetectDuration tracks ensemble scoring duration
	DetectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ensemble_detect_duration_seconds",
			Help:    "Duration of ensemble anomaly detection in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ForecastDuration tracks multi-horizon forecast duration
	ForecastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecast_duration_seconds",
			Help:    "Duration of multi-horizon forecasts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// AnomaliesFoundTotal counts scored anomalies by severity bucket
	AnomaliesFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_found_total",
			Help: "Total anomalies surfaced, by severity",
		},
		[]string{"severity"},
	)
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	// DBConnectionsOpen tracks the number of open database connections
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flockwatch_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(queryType, table, status).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// RecordModelLoad records an artifact load attempt
func RecordModelLoad(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ModelLoadsTotal.WithLabelValues(status).Inc()
	ModelLoadDuration.Observe(duration.Seconds())
}
