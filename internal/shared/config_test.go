package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	// A hand-written credentials-only file must not zero the write tuning.
	path := writeConfig(t, `
[credentials]
email = "user@example.com"
password = "hunter2"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Credentials.Email != "user@example.com" {
		t.Errorf("email = %q", cfg.Credentials.Email)
	}

	tuning := cfg.Tuning("watchlist")
	if tuning.MinDelay() != 500*time.Millisecond {
		t.Errorf("min delay = %v, want the default spacing", tuning.MinDelay())
	}
	if tuning.BlockPause() != 60*time.Second {
		t.Errorf("block pause = %v, want the default pause", tuning.BlockPause())
	}
	if cfg.API.BaseURL == "" || cfg.API.TokenURL == "" {
		t.Error("API endpoints should keep their defaults")
	}
}

func TestLoadConfigFileValuesWin(t *testing.T) {
	path := writeConfig(t, `
[sync]
concurrency = 2
min_delay_ms = 50
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tuning := cfg.Tuning("watchlist")
	if tuning.Concurrency != 2 || tuning.MinDelayMs != 50 {
		t.Errorf("tuning = %+v, want file values applied", tuning)
	}
	if tuning.BlockPauseS != 60 {
		t.Errorf("block pause = %d, untouched keys should keep defaults", tuning.BlockPauseS)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("missing file error = %v, want ErrMissingConfig", err)
	}

	path := writeConfig(t, "not toml [[[")
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid file error = %v, want ErrInvalidConfig", err)
	}
}

func TestTuningPerTypeOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync.Ratings.Concurrency = 1

	base := cfg.Tuning("watchlist")
	ratings := cfg.Tuning("ratings")
	if ratings.Concurrency != 1 {
		t.Errorf("ratings concurrency = %d, want the override", ratings.Concurrency)
	}
	if ratings.MinDelayMs != base.MinDelayMs || ratings.BlockPauseS != base.BlockPauseS {
		t.Error("zero override fields should fall back to the [sync] defaults")
	}
}
