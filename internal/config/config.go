// Package config provides configuration management for the stock tracker service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "stocktracker/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds the HTTP/WebSocket server configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// UpstreamConfig holds settings for the upstream quote provider.
type UpstreamConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	// MinIntervalSec is the minimum spacing between upstream requests.
	// The provider allows 5 requests per minute, hence 12 seconds.
	MinIntervalSec int `mapstructure:"min_interval_sec"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (c UpstreamConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// MinInterval returns the minimum inter-request spacing as a duration.
func (c UpstreamConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSec) * time.Second
}

// IngestConfig holds settings for the ingestion scheduler.
type IngestConfig struct {
	Symbols          []string `mapstructure:"symbols"`
	TickIntervalSec  int      `mapstructure:"tick_interval_sec"`
	SweepIntervalSec int      `mapstructure:"sweep_interval_sec"`
	RetentionDays    int      `mapstructure:"retention_days"`
}

// TickInterval returns the ingestion tick cadence as a duration.
func (c IngestConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

// SweepInterval returns the retention sweep cadence as a duration.
func (c IngestConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// Retention returns the observation retention window as a duration.
func (c IngestConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// DatabaseConfig holds the SQLite database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stocktracker"
	}
	return filepath.Join(home, ".config", "stocktracker")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://www.alphavantage.co/query",
			RequestTimeoutSec: 10,
			MinIntervalSec:    12,
		},
		Ingest: IngestConfig{
			Symbols:          []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"},
			TickIntervalSec:  60,
			SweepIntervalSec: 86400,
			RetentionDays:    7,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(DefaultConfigDir(), "stocktracker.db"),
		},
	}
}

// Load loads configuration from the specified directory, applying defaults,
// a local .env file and environment variable overrides in that order.
// If configDir is empty, the default config directory is used.
//
// Load does not validate: commands that need a working upstream call
// Validate themselves, so informational commands still run without an
// API key.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// Best effort; the .env file is optional.
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("STOCKTRACKER_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("STOCKTRACKER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STOCKTRACKER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STOCKTRACKER_SYMBOLS"); v != "" {
		cfg.Ingest.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("STOCKTRACKER_TICK_INTERVAL_SEC"); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x > 0 {
			cfg.Ingest.TickIntervalSec = x
		}
	}
	if v := os.Getenv("STOCKTRACKER_MIN_INTERVAL_SEC"); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x >= 0 {
			cfg.Upstream.MinIntervalSec = x
		}
	}
	if v := os.Getenv("STOCKTRACKER_RETENTION_DAYS"); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x > 0 {
			cfg.Ingest.RetentionDays = x
		}
	}
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration. A missing API key is the one startup
// failure allowed to prevent the scheduler from running at all.
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return apperrors.ErrMissingAPIKey
	}
	if len(c.Ingest.Symbols) == 0 {
		return fmt.Errorf("%w: no tracked symbols configured", apperrors.ErrConfigInvalid)
	}
	if c.Ingest.TickIntervalSec <= 0 {
		return fmt.Errorf("%w: tick_interval_sec must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Upstream.MinIntervalSec < 0 {
		return fmt.Errorf("%w: min_interval_sec must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Ingest.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention_days must be positive", apperrors.ErrConfigInvalid)
	}
	return nil
}
