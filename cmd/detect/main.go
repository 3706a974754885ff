package main

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"flockwatch/internal/config"
	"flockwatch/internal/database"
	"flockwatch/internal/detector"
	"flockwatch/internal/logger"
	"flockwatch/internal/models"
	"flockwatch/internal/rediscache"
)

// historyDays is how far back each detection run looks.
const historyDays = 30

func main() {
	cfg, err := config.Load("./config.yaml")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()

	entities, err := db.ListEntities()
	if err != nil {
		log.Fatal("failed to list entities", "error", err)
	}
	if len(entities) == 0 {
		log.Fatal("no entities found, run cmd/seed first")
	}
	log.Info("entities loaded", "count", len(entities))

	redisCfg := config.GetRedisConfig()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()
	reports := rediscache.New(redisClient, log)

	runDetectionForAllEntities(cfg, db, reports, entities, log)
}

// detectionResult holds one entity's outcome.
type detectionResult struct {
	Entity         string
	Anomalies      []models.AnomalyResult
	Error          error
	ProcessingTime time.Duration
}

func runDetectionForAllEntities(cfg *config.Config, db *database.DB, reports *rediscache.ReportCache, entities []string, log *logger.Logger) {
	startTime := time.Now()

	numWorkers := 50
	if len(entities) < numWorkers {
		numWorkers = len(entities)
	}
	log.Info("running anomaly detection", "entities", len(entities), "workers", numWorkers)

	jobs := make(chan string, len(entities))
	results := make(chan detectionResult, len(entities))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range jobs {
				start := time.Now()
				anomalies, err := detectEntity(cfg, db, entity, log)
				results <- detectionResult{
					Entity:         entity,
					Anomalies:      anomalies,
					Error:          err,
					ProcessingTime: time.Since(start),
				}
			}
		}()
	}

	for _, entity := range entities {
		jobs <- entity
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ctx := context.Background()
	totalAnomalies := 0
	totalErrors := 0
	processed := 0

	for result := range results {
		processed++

		if result.Error != nil {
			log.Error("detection failed",
				"entity", result.Entity, "error", result.Error, "seconds", result.ProcessingTime.Seconds())
			totalErrors++
			continue
		}

		if len(result.Anomalies) > 0 {
			if err := db.StoreAnomalies(result.Anomalies); err != nil {
				log.Error("failed to store anomalies", "entity", result.Entity, "error", err)
				totalErrors++
				continue
			}
			totalAnomalies += len(result.Anomalies)

			// Anomaly state changed, so cached reports are stale.
			if err := reports.Invalidate(ctx, result.Entity); err != nil {
				log.Warn("failed to invalidate report cache", "entity", result.Entity, "error", err)
			}
		}

		log.Info("entity processed",
			"progress", processed, "total", len(entities),
			"entity", result.Entity, "anomalies", len(result.Anomalies),
			"seconds", result.ProcessingTime.Seconds())
	}

	log.Info("detection run complete",
		"entities", processed-totalErrors,
		"errors", totalErrors,
		"anomalies", totalAnomalies,
		"minutes", time.Since(startTime).Minutes())
}

// detectEntity scores an entity's recent history with a fresh ensemble.
// Each worker builds its own because a fitted ensemble is not safe for
// concurrent mutation.
func detectEntity(cfg *config.Config, db *database.DB, entity string, log *logger.Logger) ([]models.AnomalyResult, error) {
	window, err := db.RecentWindow(entity, time.Now(), historyDays)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, nil
	}

	data, timestamps := buildMatrix(window)

	ens := detector.NewEnsemble(cfg.Ensemble, log)
	ens.Fit(data, weightColumn())
	return ens.Results(entity, "multivariate", timestamps, data), nil
}

// buildMatrix turns the observation window into a dense feature matrix
// in MetricColumns order. Missing values impute with the column mean so
// a sparse day never reads as an outlier on the absent metric.
func buildMatrix(window []models.Observation) ([][]float64, []time.Time) {
	means := make(map[string]float64, len(models.MetricColumns))
	for _, metric := range models.MetricColumns {
		sum, n := 0.0, 0
		for _, obs := range window {
			if v, ok := obs.Values[metric]; ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			means[metric] = sum / float64(n)
		}
	}

	data := make([][]float64, len(window))
	timestamps := make([]time.Time, len(window))
	for i, obs := range window {
		row := make([]float64, len(models.MetricColumns))
		for j, metric := range models.MetricColumns {
			if v, ok := obs.Values[metric]; ok {
				row[j] = v
			} else {
				row[j] = means[metric]
			}
		}
		data[i] = row
		timestamps[i] = obs.Timestamp
	}
	return data, timestamps
}

// weightColumn is the matrix column fed to the time-series detector.
func weightColumn() int {
	for i, metric := range models.MetricColumns {
		if metric == models.MetricWeight {
			return i
		}
	}
	return -1
}
