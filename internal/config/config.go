// Package config loads gigq's runtime configuration from environment
// variables: a single Load() that applies defaults and fails fast on
// invalid combinations.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds gigq's runtime configuration.
type Config struct {
	DatabasePath string
	Environment  string // development, staging, production
	LogFormat    string // json or text
	HTTPAddress  string // empty disables the status API
	PollInterval time.Duration
	CleanupCron  string // empty disables the scheduled cleanup
	CleanupAfter int    // days
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	pollInterval, err := parseDuration(getEnv("GIGQ_POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("config: GIGQ_POLL_INTERVAL: %w", err)
	}

	cleanupAfter, err := strconv.Atoi(getEnv("GIGQ_CLEANUP_AFTER_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("config: GIGQ_CLEANUP_AFTER_DAYS: %w", err)
	}
	if cleanupAfter <= 0 {
		return nil, fmt.Errorf("config: GIGQ_CLEANUP_AFTER_DAYS must be > 0, got %d", cleanupAfter)
	}

	logFormat := getEnv("GIGQ_LOG_FORMAT", "text")
	if logFormat != "text" && logFormat != "json" {
		return nil, fmt.Errorf("config: GIGQ_LOG_FORMAT must be \"text\" or \"json\", got %q", logFormat)
	}

	cfg := &Config{
		DatabasePath: getEnv("GIGQ_DB_PATH", "./data/gigq.db"),
		Environment:  getEnv("GIGQ_ENVIRONMENT", "production"),
		LogFormat:    logFormat,
		HTTPAddress:  getEnv("GIGQ_HTTP_ADDR", ""),
		PollInterval: pollInterval,
		CleanupCron:  getEnv("GIGQ_CLEANUP_CRON", ""),
		CleanupAfter: cleanupAfter,
	}

	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be > 0, got %s", s)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
