package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

// EnsembleConfig carries the tunable constants of the anomaly ensemble.
// The defaults are heuristics the operators already tuned alert thresholds
// against, so they live here instead of being buried as literals.
type EnsembleConfig struct {
	Weights struct {
		Isolation   float64 `yaml:"isolation"`
		Density     float64 `yaml:"density"`
		Statistical float64 `yaml:"statistical"`
		TimeSeries  float64 `yaml:"timeseries"`
	} `yaml:"weights"`
	ZScoreThreshold float64 `yaml:"zscore_threshold"`
	IQRMultiplier   float64 `yaml:"iqr_multiplier"`
	NeighborCount   int     `yaml:"neighbor_count"`
	WindowSize      int     `yaml:"window_size"`
	SeasonLength    int     `yaml:"season_length"`
	ARCoefficient   float64 `yaml:"ar_coefficient"`
	Severity        struct {
		High   float64 `yaml:"high"`
		Medium float64 `yaml:"medium"`
	} `yaml:"severity"`
}

// CacheConfig bounds the two in-process caches.
type CacheConfig struct {
	ModelTTLSeconds      int `yaml:"model_ttl_seconds"`
	PredictionTTLSeconds int `yaml:"prediction_ttl_seconds"`
	PredictionMaxSize    int `yaml:"prediction_max_size"`
}

// ForecastConfig carries the forecast engine tunables.
type ForecastConfig struct {
	Horizons             []int   `yaml:"horizons"`
	WindowDays           int     `yaml:"window_days"`
	MinObservations      int     `yaml:"min_observations"`
	ModelBlendWeight     float64 `yaml:"model_blend_weight"`
	DisplayBandPct       float64 `yaml:"display_band_pct"`
	ConfidenceMultiplier float64 `yaml:"confidence_multiplier"`
}

type Config struct {
	Registry struct {
		Dir string `yaml:"dir"`
	} `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache"`
	Ensemble EnsembleConfig `yaml:"ensemble"`
	Forecast ForecastConfig `yaml:"forecast"`
	Redis    struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	LogMode string `yaml:"log_mode"`
}

// Load reads the yaml config once per process. Subsequent calls return the
// same instance.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = defaults()

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// Default returns a config populated with the stock tunables, without
// touching the loaded singleton. Used by tests and per-call construction.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	c := &Config{}
	c.Registry.Dir = "./models"
	c.Cache.ModelTTLSeconds = 3600
	c.Cache.PredictionTTLSeconds = 600
	c.Cache.PredictionMaxSize = 1000
	c.Ensemble.Weights.Isolation = 0.3
	c.Ensemble.Weights.Density = 0.3
	c.Ensemble.Weights.Statistical = 0.2
	c.Ensemble.Weights.TimeSeries = 0.2
	c.Ensemble.ZScoreThreshold = 3.0
	c.Ensemble.IQRMultiplier = 1.5
	c.Ensemble.NeighborCount = 20
	c.Ensemble.WindowSize = 7
	c.Ensemble.SeasonLength = 7
	c.Ensemble.ARCoefficient = 0.8
	c.Ensemble.Severity.High = 0.8
	c.Ensemble.Severity.Medium = 0.6
	c.Forecast.Horizons = []int{7, 14, 30}
	c.Forecast.WindowDays = 7
	c.Forecast.MinObservations = 3
	c.Forecast.ModelBlendWeight = 0.7
	c.Forecast.DisplayBandPct = 0.10
	c.Forecast.ConfidenceMultiplier = 1.5
	c.LogMode = "dev"
	return c
}

func (c *Config) validate() error {
	if c.Registry.Dir == "" {
		return fmt.Errorf("registry.dir cannot be empty")
	}
	if c.Cache.PredictionMaxSize <= 0 {
		return fmt.Errorf("cache.prediction_max_size must be positive")
	}
	w := c.Ensemble.Weights
	if w.Isolation+w.Density+w.Statistical+w.TimeSeries <= 0 {
		return fmt.Errorf("ensemble.weights must sum to a positive value")
	}
	if c.Ensemble.Severity.Medium >= c.Ensemble.Severity.High {
		return fmt.Errorf("ensemble.severity.medium must be below ensemble.severity.high")
	}
	for _, h := range c.Forecast.Horizons {
		if h <= 0 {
			return fmt.Errorf("forecast.horizons must be positive, got %d", h)
		}
	}
	return nil
}
