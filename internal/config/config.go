package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string

	// Crash game tuning
	HouseEdge         float64       // fraction, e.g. 0.05 for 5%
	TickInterval      time.Duration // multiplier update interval
	CountdownDuration time.Duration // betting window before flight
	CrashPause        time.Duration // result display after crash
	MaxDisplayMult    float64       // display ceiling, never affects settlement
	StartingBalance   float64       // cents credited to a fresh wallet
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),

		HouseEdge:         0.05,
		TickInterval:      100 * time.Millisecond,
		CountdownDuration: 2000 * time.Millisecond,
		CrashPause:        3000 * time.Millisecond,
		MaxDisplayMult:    100.0,
		StartingBalance:   10000, // $100.00 in cents
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
	}
	cfg.RedisDB = redisDB

	if v := os.Getenv("HOUSE_EDGE"); v != "" {
		edge, err := strconv.ParseFloat(v, 64)
		if err != nil || edge < 0 || edge >= 1 {
			return nil, fmt.Errorf("invalid HOUSE_EDGE: %q", v)
		}
		cfg.HouseEdge = edge
	}

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
