// Package config provides configuration management for ServiceKeeper.
package config

import (
	"fmt"
	"time"
)

// Journal output formats.
const (
	JournalFormatJSON = "json"
	JournalFormatText = "text"
)

// Config is the root configuration structure (ServiceKeeper.json).
type Config struct {
	TargetsFile        string        `json:"TargetsFile"`
	DefaultTargets     []string      `json:"DefaultTargets"`
	PollInterval       time.Duration `json:"PollInterval"`
	StopTimeout        time.Duration `json:"StopTimeout"`
	StatusPollInterval time.Duration `json:"StatusPollInterval"`
	WatchTargets       bool          `json:"WatchTargets"`
	Journal            JournalConfig `json:"Journal"`
	Metrics            MetricsConfig `json:"Metrics"`
}

// JournalConfig controls the audit journal of engine events.
type JournalConfig struct {
	Enabled    bool   `json:"Enabled"`
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Format     string `json:"Format"` // "json" or "text"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"Enabled"`
	Address string `json:"Address"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	pd := GetPlatformDefaults()
	return &Config{
		TargetsFile:        pd.TargetsFile,
		DefaultTargets:     append([]string(nil), pd.DefaultTargets...),
		PollInterval:       5 * time.Second,
		StopTimeout:        10 * time.Second,
		StatusPollInterval: 250 * time.Millisecond,
		WatchTargets:       true,
		Journal: JournalConfig{
			Enabled:    true,
			FilePath:   "log/ServiceKeeper/journal.jsonl",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Format:     JournalFormatJSON,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9464",
		},
	}
}

// Merge applies non-zero values from other to this config. Booleans are not
// merged here; the loader applies them only when the file sets them.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.TargetsFile != "" {
		c.TargetsFile = other.TargetsFile
	}
	if other.DefaultTargets != nil {
		c.DefaultTargets = other.DefaultTargets
	}
	if other.PollInterval != 0 {
		c.PollInterval = other.PollInterval
	}
	if other.StopTimeout != 0 {
		c.StopTimeout = other.StopTimeout
	}
	if other.StatusPollInterval != 0 {
		c.StatusPollInterval = other.StatusPollInterval
	}

	if other.Journal.FilePath != "" {
		c.Journal.FilePath = other.Journal.FilePath
	}
	if other.Journal.MaxSizeMB != 0 {
		c.Journal.MaxSizeMB = other.Journal.MaxSizeMB
	}
	if other.Journal.MaxBackups != 0 {
		c.Journal.MaxBackups = other.Journal.MaxBackups
	}
	if other.Journal.Format != "" {
		c.Journal.Format = other.Journal.Format
	}

	if other.Metrics.Address != "" {
		c.Metrics.Address = other.Metrics.Address
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.TargetsFile == "" {
		return fmt.Errorf("TargetsFile is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be positive, got %s", c.PollInterval)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("StopTimeout must be positive, got %s", c.StopTimeout)
	}
	if c.StatusPollInterval <= 0 {
		return fmt.Errorf("StatusPollInterval must be positive, got %s", c.StatusPollInterval)
	}
	if c.Journal.Enabled {
		switch c.Journal.Format {
		case JournalFormatJSON, JournalFormatText:
		default:
			return fmt.Errorf("unsupported Journal.Format %q: must be %q or %q",
				c.Journal.Format, JournalFormatJSON, JournalFormatText)
		}
		if c.Journal.FilePath == "" {
			return fmt.Errorf("Journal.FilePath is required when the journal is enabled")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("Metrics.Address is required when metrics are enabled")
	}
	return nil
}
