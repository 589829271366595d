// Package config handles configuration loading and validation for checkup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// RemoteConfig points the engine at the checklist service.
type RemoteConfig struct {
	// BaseURL is the root of the checklist service REST API.
	BaseURL string `yaml:"base_url"`
	// Token is the bearer token attached to every request. The surrounding
	// app refreshes it; checkup only carries it.
	Token string `yaml:"token"`
	// TimeoutSeconds bounds each remote call. A timeout is treated like any
	// other connectivity failure: the mutation is queued for replay.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the remote call timeout as a duration.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SyncConfig tunes the offline queue replay and refresh polling.
type SyncConfig struct {
	// RetryBaseSeconds is the initial backoff between replay attempts for a
	// failing mutation; doubles per attempt up to RetryMaxSeconds.
	RetryBaseSeconds int `yaml:"retry_base_seconds"`
	RetryMaxSeconds  int `yaml:"retry_max_seconds"`
	// RefreshMaxWaitSeconds bounds the fetch poll in ForceRefresh while the
	// server finishes creating records out-of-band.
	RefreshMaxWaitSeconds int `yaml:"refresh_max_wait_seconds"`
}

// RetryBase returns the initial replay backoff as a duration.
func (s SyncConfig) RetryBase() time.Duration {
	return time.Duration(s.RetryBaseSeconds) * time.Second
}

// RetryMax returns the backoff ceiling as a duration.
func (s SyncConfig) RetryMax() time.Duration {
	return time.Duration(s.RetryMaxSeconds) * time.Second
}

// RefreshMaxWait returns the refresh poll budget as a duration.
func (s SyncConfig) RefreshMaxWait() time.Duration {
	return time.Duration(s.RefreshMaxWaitSeconds) * time.Second
}

// DatabaseConfig tunes the local Badger store.
type DatabaseConfig struct {
	// SyncWrites forces an fsync per write. On by default: queued mutations
	// and optimistic finalizations must survive a crash.
	SyncWrites *bool `yaml:"sync_writes"`
	// GCIntervalMinutes is how often value-log garbage collection runs.
	// 0 disables it.
	GCIntervalMinutes int `yaml:"gc_interval_minutes"`
}

// SyncWritesEnabled resolves the tri-state flag with its default of true.
func (d DatabaseConfig) SyncWritesEnabled() bool {
	if d.SyncWrites == nil {
		return true
	}
	return *d.SyncWrites
}

// GCInterval returns the garbage collection interval as a duration.
func (d DatabaseConfig) GCInterval() time.Duration {
	return time.Duration(d.GCIntervalMinutes) * time.Minute
}

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			TimeoutSeconds: 10,
		},
		Sync: SyncConfig{
			RetryBaseSeconds:      2,
			RetryMaxSeconds:       300,
			RefreshMaxWaitSeconds: 30,
		},
		Database: DatabaseConfig{
			GCIntervalMinutes: 5,
		},
	}
}

// Load reads the config file if present, applies defaults, and validates.
// A missing file is not an error; the defaults plus flags must suffice.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Remote.TimeoutSeconds == 0 {
		c.Remote.TimeoutSeconds = def.Remote.TimeoutSeconds
	}
	if c.Sync.RetryBaseSeconds == 0 {
		c.Sync.RetryBaseSeconds = def.Sync.RetryBaseSeconds
	}
	if c.Sync.RetryMaxSeconds == 0 {
		c.Sync.RetryMaxSeconds = def.Sync.RetryMaxSeconds
	}
	if c.Sync.RefreshMaxWaitSeconds == 0 {
		c.Sync.RefreshMaxWaitSeconds = def.Sync.RefreshMaxWaitSeconds
	}
}

// Validate performs structural validation of the configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Remote.BaseURL != "" && !strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		problems = append(problems, fmt.Sprintf("remote.base_url %q must start with http:// or https://", c.Remote.BaseURL))
	}
	if c.Remote.TimeoutSeconds < 0 {
		problems = append(problems, "remote.timeout_seconds must not be negative")
	}
	if c.Sync.RetryBaseSeconds < 0 || c.Sync.RetryMaxSeconds < 0 {
		problems = append(problems, "sync retry intervals must not be negative")
	}
	if c.Sync.RetryMaxSeconds > 0 && c.Sync.RetryBaseSeconds > c.Sync.RetryMaxSeconds {
		problems = append(problems, "sync.retry_base_seconds must not exceed sync.retry_max_seconds")
	}
	if c.Database.GCIntervalMinutes < 0 {
		problems = append(problems, "database.gc_interval_minutes must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
