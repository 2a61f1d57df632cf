package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultGraphQLURL = "https://leetcode.com/graphql"

// config carries every tunable knob of the service. Values come from the
// environment (a .env file is loaded first when present) with defaults that
// match production behavior; only DATABASE_URL has no default.
type config struct {
	addr        string
	databaseURL string
	graphqlURL  string

	cacheTTL     time.Duration
	fetchTimeout time.Duration
	maxRetries   int

	// Bounded "live" page refresh.
	refreshConcurrency int
	refreshDelay       time.Duration
	refreshDeadline    time.Duration

	// Administrative bulk upload.
	uploadDelay time.Duration
	uploadCap   int
}

func loadConfig() (config, error) {
	_ = godotenv.Load() // loads .env into environment variables (safe to ignore error)

	cfg := config{
		addr:               envString("ADDR", ":8080"),
		databaseURL:        os.Getenv("DATABASE_URL"),
		graphqlURL:         envString("LEETCODE_GRAPHQL_URL", defaultGraphQLURL),
		cacheTTL:           envDuration("CACHE_TTL", 600*time.Second),
		fetchTimeout:       envDuration("FETCH_TIMEOUT", 30*time.Second),
		maxRetries:         envInt("FETCH_MAX_RETRIES", 2),
		refreshConcurrency: envInt("REFRESH_CONCURRENCY", 4),
		refreshDelay:       envDuration("REFRESH_DELAY", 600*time.Millisecond),
		refreshDeadline:    envDuration("REFRESH_DEADLINE", 25*time.Second),
		uploadDelay:        envDuration("UPLOAD_DELAY", 800*time.Millisecond),
		uploadCap:          envInt("UPLOAD_CAP", 50),
	}

	if cfg.databaseURL == "" {
		return config{}, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept both "600s" style and bare seconds.
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
