// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrR2ConfigIncomplete is returned when only part of the R2 credentials are set.
	ErrR2ConfigIncomplete = errors.New("config: R2 is enabled but account, bucket or credentials are missing")
	// ErrMaxMergeClipsInvalid is returned when MAX_MERGE_CLIPS is below 2.
	ErrMaxMergeClipsInvalid = errors.New("config: MAX_MERGE_CLIPS must be at least 2")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/composer" json:"temp_dir"`
	FontDir string `env:"FONT_DIR, default=./fonts" json:"font_dir"`

	// Download settings
	MaxFileSize        int64 `env:"MAX_FILE_SIZE, default=104857600" json:"max_file_size"`
	DownloadTimeoutSec int   `env:"DOWNLOAD_TIMEOUT, default=300" json:"download_timeout_sec"`

	// Processing settings
	RenderTimeoutSec int `env:"RENDER_TIMEOUT, default=300" json:"render_timeout_sec"`
	MergeTimeoutSec  int `env:"MERGE_TIMEOUT, default=600" json:"merge_timeout_sec"`
	MaxMergeClips    int `env:"MAX_MERGE_CLIPS, default=10" json:"max_merge_clips"`

	// Optional R2/S3 settings
	R2Enabled         bool   `env:"R2_ENABLED, default=false" json:"r2_enabled"`
	R2AccountID       string `env:"R2_ACCOUNT_ID" json:"-"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	R2Bucket          string `env:"R2_BUCKET_NAME" json:"r2_bucket,omitempty"`
	R2CustomDomain    string `env:"R2_CUSTOM_DOMAIN" json:"r2_custom_domain,omitempty"`

	// Optional template database settings
	DatabaseURL string `env:"DATABASE_URL" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if the resulting configuration is inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2Bucket == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" {
			return ErrR2ConfigIncomplete
		}
	}
	if c.MaxMergeClips < 2 {
		return ErrMaxMergeClipsInvalid
	}
	return nil
}

// FontMedium returns the path to the medium-weight brand font.
func (c *Config) FontMedium() string {
	return filepath.Join(c.FontDir, "TikTokSans-Medium.ttf")
}

// FontSemiBold returns the path to the semi-bold brand font.
func (c *Config) FontSemiBold() string {
	return filepath.Join(c.FontDir, "TikTokSans-SemiBold.ttf")
}

// DatabaseEnabled returns true if a template database is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != ""
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, FontDir: %s, MaxFileSize: %d, MaxMergeClips: %d, R2Enabled: %t, R2Bucket: %s, DatabaseEnabled: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FontDir,
		c.MaxFileSize,
		c.MaxMergeClips,
		c.R2Enabled,
		c.R2Bucket,
		c.DatabaseEnabled(),
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
