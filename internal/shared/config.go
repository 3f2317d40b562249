package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Sync        SyncConfig        `toml:"sync"`
	Database    DatabaseConfig    `toml:"database"`
	Export      ExportConfig      `toml:"export"`
}

// CredentialsConfig contains account credentials. Email and password may be
// left empty and supplied interactively or via flags instead.
type CredentialsConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Profile  string `toml:"profile"`
}

// APIConfig contains endpoints and the public client identity used for the
// password-grant token exchange.
type APIConfig struct {
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SyncTuning holds the knobs for one data type's write path.
type SyncTuning struct {
	Concurrency   int   `toml:"concurrency"`
	MinDelayMs    int64 `toml:"min_delay_ms"`
	MaxAttempts   int   `toml:"max_attempts"`
	BaseBackoffMs int64 `toml:"base_backoff_ms"`
	MaxBackoffMs  int64 `toml:"max_backoff_ms"`
	BlockPauseS   int64 `toml:"block_pause_s"`
}

// SyncConfig contains the default write tuning plus optional per-data-type
// overrides. A zero field in an override falls back to the default.
type SyncConfig struct {
	SyncTuning
	Watchlist SyncTuning `toml:"watchlist"`
	History   SyncTuning `toml:"history"`
	Lists     SyncTuning `toml:"lists"`
	Ratings   SyncTuning `toml:"ratings"`
}

// DatabaseConfig contains run-journal database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ExportConfig contains export-side pacing settings.
type ExportConfig struct {
	Dir        string  `toml:"dir"`
	NumWorkers int     `toml:"num_workers"`
	RateLimit  float64 `toml:"rate_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified
// path. The file is decoded over the embedded defaults, so keys it omits
// keep their default values; a credentials-only config still carries the
// full write tuning.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Tuning resolves the effective write tuning for a data type, applying any
// per-type override on top of the [sync] defaults.
func (c *Config) Tuning(dataType string) SyncTuning {
	base := c.Sync.SyncTuning

	var override SyncTuning
	switch dataType {
	case "watchlist":
		override = c.Sync.Watchlist
	case "history":
		override = c.Sync.History
	case "lists":
		override = c.Sync.Lists
	case "ratings":
		override = c.Sync.Ratings
	}

	if override.Concurrency > 0 {
		base.Concurrency = override.Concurrency
	}
	if override.MinDelayMs > 0 {
		base.MinDelayMs = override.MinDelayMs
	}
	if override.MaxAttempts > 0 {
		base.MaxAttempts = override.MaxAttempts
	}
	if override.BaseBackoffMs > 0 {
		base.BaseBackoffMs = override.BaseBackoffMs
	}
	if override.MaxBackoffMs > 0 {
		base.MaxBackoffMs = override.MaxBackoffMs
	}
	if override.BlockPauseS > 0 {
		base.BlockPauseS = override.BlockPauseS
	}
	return base
}

// MinDelay returns the minimum spacing between write requests.
func (t SyncTuning) MinDelay() time.Duration { return time.Duration(t.MinDelayMs) * time.Millisecond }

// BaseBackoff returns the first retry delay.
func (t SyncTuning) BaseBackoff() time.Duration {
	return time.Duration(t.BaseBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (t SyncTuning) MaxBackoff() time.Duration {
	return time.Duration(t.MaxBackoffMs) * time.Millisecond
}

// BlockPause returns the engine-wide pause applied on a service-level block.
func (t SyncTuning) BlockPause() time.Duration { return time.Duration(t.BlockPauseS) * time.Second }
