package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"svckeeper/internal/logger"
)

// rawConfig mirrors ServiceKeeper.json with duration strings and optional booleans.
type rawConfig struct {
	TargetsFile        string           `json:"TargetsFile"`
	DefaultTargets     []string         `json:"DefaultTargets"`
	PollInterval       string           `json:"PollInterval"`
	StopTimeout        string           `json:"StopTimeout"`
	StatusPollInterval string           `json:"StatusPollInterval"`
	WatchTargets       *bool            `json:"WatchTargets"`
	Journal            rawJournalConfig `json:"Journal"`
	Metrics            rawMetricsConfig `json:"Metrics"`
}

type rawJournalConfig struct {
	Enabled    *bool  `json:"Enabled"`
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Format     string `json:"Format"`
}

type rawMetricsConfig struct {
	Enabled *bool  `json:"Enabled"`
	Address string `json:"Address"`
}

type rawLoggingConfig struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   *bool  `json:"Compress"`
	Console    *bool  `json:"Console"`
	Format     string `json:"Format"`
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses ServiceKeeper.json bytes, applies them over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	parsed, err := convertRawConfig(&raw)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Merge(parsed)

	if raw.WatchTargets != nil {
		cfg.WatchTargets = *raw.WatchTargets
	}
	if raw.Journal.Enabled != nil {
		cfg.Journal.Enabled = *raw.Journal.Enabled
	}
	if raw.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *raw.Metrics.Enabled
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func convertRawConfig(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		TargetsFile:    raw.TargetsFile,
		DefaultTargets: raw.DefaultTargets,
		Journal: JournalConfig{
			FilePath:   raw.Journal.FilePath,
			MaxSizeMB:  raw.Journal.MaxSizeMB,
			MaxBackups: raw.Journal.MaxBackups,
			Format:     raw.Journal.Format,
		},
		Metrics: MetricsConfig{
			Address: raw.Metrics.Address,
		},
	}

	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"PollInterval", raw.PollInterval, &cfg.PollInterval},
		{"StopTimeout", raw.StopTimeout, &cfg.StopTimeout},
		{"StatusPollInterval", raw.StatusPollInterval, &cfg.StatusPollInterval},
	}
	for _, d := range durations {
		if d.src == "" {
			continue
		}
		v, err := time.ParseDuration(d.src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s duration: %w", d.name, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s duration: must be positive, got %s", d.name, d.src)
		}
		*d.dst = v
	}

	return cfg, nil
}

// LoadLogging reads logging configuration from the specified file path.
func LoadLogging(path string) (*logger.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return ParseLogging(data)
}

// ParseLogging parses Logging.json bytes over logger.DefaultConfig.
func ParseLogging(data []byte) (*logger.Config, error) {
	var raw rawLoggingConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse logging config JSON: %w", err)
	}

	lc := logger.DefaultConfig()
	if raw.Level != "" {
		lc.Level = raw.Level
	}
	if raw.FilePath != "" {
		lc.FilePath = raw.FilePath
	}
	if raw.MaxSizeMB != 0 {
		lc.MaxSizeMB = raw.MaxSizeMB
	}
	if raw.MaxBackups != 0 {
		lc.MaxBackups = raw.MaxBackups
	}
	if raw.MaxAgeDays != 0 {
		lc.MaxAgeDays = raw.MaxAgeDays
	}
	if raw.Compress != nil {
		lc.Compress = *raw.Compress
	}
	if raw.Console != nil {
		lc.Console = *raw.Console
	}
	if raw.Format != "" {
		if raw.Format != logger.FormatJSON && raw.Format != logger.FormatText {
			return nil, fmt.Errorf("unsupported logging Format %q: must be %q or %q",
				raw.Format, logger.FormatJSON, logger.FormatText)
		}
		lc.Format = raw.Format
	}

	return &lc, nil
}

// LoadSplit loads ServiceKeeper.json and Logging.json.
func LoadSplit(configPath, loggingPath string) (*Config, *logger.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	lc, err := LoadLogging(loggingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
	}

	return cfg, lc, nil
}
