package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GetRedisConfig resolves the report-cache connection, preferring
// environment variables over the yaml config.
func GetRedisConfig() RedisConfig {
	cfg := Get()

	db := cfg.Redis.DB
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}

	addr := cfg.Redis.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	password := cfg.Redis.Password
	if env := os.Getenv("REDIS_PASSWORD"); env != "" {
		password = env
	}

	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", addr),
		Password: password,
		DB:       db,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
