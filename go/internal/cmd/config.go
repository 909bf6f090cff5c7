package main

import (
	"os"
	"strconv"
	"time"
)

// Config holds the coordinator's runtime configuration, read from the
// environment after godotenv has loaded any .env file.
type Config struct {
	Port string

	// StoreBackend selects "memory" (single process) or "redis".
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// NATSURL enables event publishing when set.
	NATSURL string

	// QuestionPack is an optional YAML file of custom questions, tried
	// before the built-in library.
	QuestionPack string

	JoinBaseURL string

	// StaleAfterHours bounds how long an inactive room survives sweeps.
	StaleAfterHours int
	SweepMinutes    int
}

func loadConfig() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		StoreBackend:    getEnv("STORE_BACKEND", "memory"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		RedisPrefix:     getEnv("REDIS_PREFIX", "spyroom:"),
		NATSURL:         getEnv("NATS_URL", ""),
		QuestionPack:    getEnv("QUESTION_PACK", ""),
		JoinBaseURL:     getEnv("JOIN_BASE_URL", "http://localhost:3000/join"),
		StaleAfterHours: getEnvAsInt("STALE_AFTER_HOURS", 6),
		SweepMinutes:    getEnvAsInt("SWEEP_MINUTES", 30),
	}
}

func (c Config) staleAfter() time.Duration {
	return time.Duration(c.StaleAfterHours) * time.Hour
}

func (c Config) sweepInterval() time.Duration {
	return time.Duration(c.SweepMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
