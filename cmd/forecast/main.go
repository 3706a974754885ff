package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"flockwatch/internal/cache"
	"flockwatch/internal/config"
	"flockwatch/internal/database"
	"flockwatch/internal/forecast"
	"flockwatch/internal/logger"
	"flockwatch/internal/models"
	"flockwatch/internal/rediscache"
	"flockwatch/internal/registry"
)

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

	reg, err := registry.New(cfg.Registry.Dir, log)
	if err != nil {
		log.Fatal("failed to open model registry", "error", err)
	}
	if _, err := reg.Active(); err != nil {
		log.Fatal("no deployable model", "error", err)
	}

	artifacts := cache.NewModelCache(
		time.Duration(cfg.Cache.ModelTTLSeconds)*time.Second, registry.LoadArtifact, log)
	responses := cache.NewPredictionCache(
		cfg.Cache.PredictionMaxSize, time.Duration(cfg.Cache.PredictionTTLSeconds)*time.Second, log)

	redisCfg := config.GetRedisConfig()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()
	reports := rediscache.New(redisClient, log)

	engine := forecast.NewEngine(cfg.Forecast, db, reg, artifacts, responses, log)

	entities, err := db.ListEntities()
	if err != nil {
		log.Fatal("failed to list entities", "error", err)
	}
	if len(entities) == 0 {
		log.Fatal("no entities found, run cmd/seed first")
	}

	ctx := context.Background()
	generated := 0
	skipped := 0
	failed := 0

	for _, entity := range entities {
		results, err := engine.PredictMultiHorizon(entity, cfg.Forecast.Horizons)
		if err != nil {
			var insufficient *models.InsufficientHistoryError
			if errors.As(err, &insufficient) {
				log.Warn("entity skipped",
					"entity", entity, "observations", insufficient.Have, "required", insufficient.Need)
				skipped++
				continue
			}
			log.Error("forecast failed", "entity", entity, "error", err)
			failed++
			continue
		}

		if err := db.StoreForecasts(results); err != nil {
			log.Error("failed to store forecasts", "entity", entity, "error", err)
			failed++
			continue
		}

		// Warm the dashboard cache with the freshly computed forecast.
		if err := reports.Set(ctx, rediscache.KindForecast, entity, results); err != nil {
			log.Warn("failed to cache forecast", "entity", entity, "error", err)
		}

		window, err := engine.RecentWindow(entity, time.Now())
		if err == nil {
			sevenDay := sevenDayForecast(results)
			if warnings := forecast.Warnings(window, sevenDay); len(warnings) > 0 {
				for _, w := range warnings {
					log.Warn("husbandry warning",
						"entity", entity, "type", w.Type, "severity", w.Severity, "message", w.Message)
				}
			}
		}

		generated++
	}

	log.Info("forecast run complete", "generated", generated, "skipped", skipped, "failed", failed)
}

func sevenDayForecast(results []models.ForecastResult) []models.ForecastDay {
	for _, r := range results {
		if r.HorizonDays == 7 {
			return r.Days
		}
	}
	if len(results) > 0 && len(results[0].Days) >= 7 {
		return results[0].Days[:7]
	}
	return nil
}
