package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Path: "./vigil.db"},
		Security: SecurityConfig{APIKey: "secret"},
		Session: SessionConfig{
			StaleThresholdMinutes: 5,
			GraceMinutes:          15,
			SweepIntervalSeconds:  60,
		},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Timezone: "UTC",
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{
		"server": {"host": "127.0.0.1", "port": 9090},
		"database": {"path": "/tmp/test.db"},
		"security": {"api_key": "test-key"},
		"session": {
			"stale_threshold_minutes": 5,
			"grace_minutes": 15,
			"sweep_interval_seconds": 30
		},
		"logging": {"level": "debug", "format": "text"},
		"timezone": "Europe/Berlin"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "test-key", cfg.Security.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Session.StaleThreshold())
	assert.Equal(t, 15*time.Minute, cfg.Session.Grace())
	assert.Equal(t, 30*time.Second, cfg.Session.SweepInterval())
	assert.Equal(t, "debug", cfg.Logging.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"missing api key", func(c *Config) { c.Security.APIKey = "" }},
		{"non-positive stale threshold", func(c *Config) { c.Session.StaleThresholdMinutes = 0 }},
		{"grace shorter than stale threshold", func(c *Config) { c.Session.GraceMinutes = 2 }},
		{"non-positive sweep interval", func(c *Config) { c.Session.SweepIntervalSeconds = 0 }},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	assert.NoError(t, validConfig().Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VIGIL_API_KEY", "env-key")
	t.Setenv("VIGIL_PORT", "9999")
	t.Setenv("VIGIL_STALE_THRESHOLD_MINUTES", "10")
	t.Setenv("VIGIL_GRACE_MINUTES", "20")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Security.APIKey)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Session.StaleThresholdMinutes)
	assert.Equal(t, 20, cfg.Session.GraceMinutes)

	// Defaults fill what the environment leaves out
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadFromEnv_MissingAPIKey(t *testing.T) {
	t.Setenv("VIGIL_API_KEY", "")

	_, err := LoadFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
