package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Session  SessionConfig  `json:"session"`
	Logging  LoggingConfig  `json:"logging"`
	Timezone string         `json:"timezone"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	APIKey string `json:"api_key"`
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	StaleThresholdMinutes int `json:"stale_threshold_minutes"` // heartbeat gap before auto-close
	GraceMinutes          int `json:"grace_minutes"`           // idle time before the sweeper force-closes
	SweepIntervalSeconds  int `json:"sweep_interval_seconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// StaleThreshold returns the stale threshold as a duration
func (c *SessionConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdMinutes) * time.Minute
}

// Grace returns the abandoned-session grace period as a duration
func (c *SessionConfig) Grace() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}

// SweepInterval returns the sweep interval as a duration
func (c *SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
	}
	return loc, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	if c.Session.StaleThresholdMinutes <= 0 {
		return fmt.Errorf("%w: stale threshold must be positive", ErrInvalidConfig)
	}

	if c.Session.GraceMinutes < c.Session.StaleThresholdMinutes {
		return fmt.Errorf("%w: grace period must not be shorter than the stale threshold", ErrInvalidConfig)
	}

	if c.Session.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("VIGIL_HOST", "0.0.0.0"),
			Port: getEnvInt("VIGIL_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path: getEnv("VIGIL_DB_PATH", "./vigil.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("VIGIL_API_KEY", ""),
		},
		Session: SessionConfig{
			StaleThresholdMinutes: getEnvInt("VIGIL_STALE_THRESHOLD_MINUTES", 5),
			GraceMinutes:          getEnvInt("VIGIL_GRACE_MINUTES", 15),
			SweepIntervalSeconds:  getEnvInt("VIGIL_SWEEP_INTERVAL_SECONDS", 60),
		},
		Logging: LoggingConfig{
			Level:  getEnv("VIGIL_LOG_LEVEL", "info"),
			Format: getEnv("VIGIL_LOG_FORMAT", "json"),
		},
		Timezone: getEnv("VIGIL_TIMEZONE", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}
