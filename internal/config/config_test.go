package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	cfg := Load()
	if cfg.DatabasePath != "./data/transit.db" {
		t.Errorf("unexpected default DatabasePath: %s", cfg.DatabasePath)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("unexpected default PollInterval: %v", cfg.PollInterval)
	}
	if !cfg.SynthOnBoot {
		t.Error("expected SynthOnBoot to default to true")
	}
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("SQLITE_DATABASE", "/tmp/other.db")
	t.Setenv("POLL_INTERVAL_SECONDS", "30")
	t.Setenv("SYNTHESISE_ON_BOOT", "false")

	cfg := Load()
	if cfg.DatabasePath != "/tmp/other.db" {
		t.Errorf("expected overridden DatabasePath, got %s", cfg.DatabasePath)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("expected overridden PollInterval, got %v", cfg.PollInterval)
	}
	if cfg.SynthOnBoot {
		t.Error("expected SynthOnBoot override to false")
	}
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("STATIC_REFRESH_DAYS", "not-a-number")
	cfg := Load()
	if cfg.StaticRefreshDays != 7 {
		t.Errorf("expected fallback default of 7, got %d", cfg.StaticRefreshDays)
	}
}
