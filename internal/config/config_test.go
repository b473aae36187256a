package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, orig)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "GIGQ_DB_PATH", "GIGQ_ENVIRONMENT", "GIGQ_LOG_FORMAT",
		"GIGQ_HTTP_ADDR", "GIGQ_POLL_INTERVAL", "GIGQ_CLEANUP_CRON", "GIGQ_CLEANUP_AFTER_DAYS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabasePath != "./data/gigq.db" {
		t.Errorf("DatabasePath = %q, want default", cfg.DatabasePath)
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.HTTPAddress != "" {
		t.Errorf("HTTPAddress = %q, want empty (disabled)", cfg.HTTPAddress)
	}
	if cfg.PollInterval.Seconds() != 5 {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.CleanupAfter != 30 {
		t.Errorf("CleanupAfter = %d, want 30", cfg.CleanupAfter)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t, "GIGQ_DB_PATH", "GIGQ_LOG_FORMAT", "GIGQ_POLL_INTERVAL", "GIGQ_CLEANUP_AFTER_DAYS")
	os.Setenv("GIGQ_DB_PATH", "/tmp/custom.db")
	os.Setenv("GIGQ_LOG_FORMAT", "json")
	os.Setenv("GIGQ_POLL_INTERVAL", "500ms")
	os.Setenv("GIGQ_CLEANUP_AFTER_DAYS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabasePath != "/tmp/custom.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.PollInterval.Milliseconds() != 500 {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.CleanupAfter != 7 {
		t.Errorf("CleanupAfter = %d", cfg.CleanupAfter)
	}
}

func TestLoadRejectsInvalidLogFormat(t *testing.T) {
	clearEnv(t, "GIGQ_LOG_FORMAT")
	os.Setenv("GIGQ_LOG_FORMAT", "xml")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid log format, got nil")
	}
}

func TestLoadRejectsNonPositiveCleanupAfter(t *testing.T) {
	clearEnv(t, "GIGQ_CLEANUP_AFTER_DAYS")
	os.Setenv("GIGQ_CLEANUP_AFTER_DAYS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for zero cleanup-after-days, got nil")
	}
}

func TestLoadRejectsNonPositivePollInterval(t *testing.T) {
	clearEnv(t, "GIGQ_POLL_INTERVAL")
	os.Setenv("GIGQ_POLL_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for zero poll interval, got nil")
	}
}
