package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "navsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 50.0, cfg.Navigation.ArrivalThresholdMeters)
	assert.Equal(t, time.Second, cfg.Navigation.BaseTickInterval)
	assert.Equal(t, 1, cfg.Navigation.DefaultSpeed)
	assert.Equal(t, 30*time.Second, cfg.Navigation.FirstSampleTimeout)
	assert.Equal(t, "https://graphhopper.com/api/1", cfg.GraphHopper.BaseURL)
	assert.Equal(t, "en", cfg.GraphHopper.Locale)
	assert.Equal(t, 15*time.Minute, cfg.Cache.RouteTTL)
	assert.Equal(t, "vehicle.positions", cfg.Telemetry.Topic)
	assert.False(t, cfg.Telemetry.Enabled())
	assert.Equal(t, "info", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
navigation:
  arrival_threshold_m: 25
  base_tick_interval: 500ms
  default_speed: 5
graphhopper:
  api_key: secret
  locale: de
telemetry:
  brokers:
    - localhost:9092
  group_id: navsim
log:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25.0, cfg.Navigation.ArrivalThresholdMeters)
	assert.Equal(t, 500*time.Millisecond, cfg.Navigation.BaseTickInterval)
	assert.Equal(t, 5, cfg.Navigation.DefaultSpeed)
	assert.Equal(t, 30*time.Second, cfg.Navigation.FirstSampleTimeout, "unset keys keep defaults")
	assert.Equal(t, "secret", cfg.GraphHopper.APIKey)
	assert.Equal(t, "de", cfg.GraphHopper.Locale)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Telemetry.Brokers)
	assert.Equal(t, "vehicle.positions", cfg.Telemetry.Topic)
	assert.Equal(t, "navsim", cfg.Telemetry.GroupID)
	assert.True(t, cfg.Telemetry.Enabled())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
graphhopper:
  api_key: from-file
`)
	t.Setenv("NAV_GRAPHHOPPER__API_KEY", "from-env")
	t.Setenv("NAV_NAVIGATION__FIRST_SAMPLE_TIMEOUT", "5s")
	t.Setenv("NAV_NAVIGATION__DEFAULT_SPEED", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GraphHopper.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Navigation.FirstSampleTimeout)
	assert.Equal(t, 10, cfg.Navigation.DefaultSpeed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "navigation: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero threshold", func(c *Config) { c.Navigation.ArrivalThresholdMeters = 0 }, "ArrivalThresholdMeters"},
		{"unsupported speed", func(c *Config) { c.Navigation.DefaultSpeed = 3 }, "DefaultSpeed"},
		{"negative timeout", func(c *Config) { c.Navigation.FirstSampleTimeout = -time.Second }, "FirstSampleTimeout"},
		{"bad base url", func(c *Config) { c.GraphHopper.BaseURL = "not a url" }, "BaseURL"},
		{"zero ttl", func(c *Config) { c.Cache.RouteTTL = 0 }, "RouteTTL"},
		{"bad broker", func(c *Config) { c.Telemetry.Brokers = []string{"no-port"} }, "Brokers"},
		{"brokers without topic", func(c *Config) {
			c.Telemetry.Brokers = []string{"localhost:9092"}
			c.Telemetry.Topic = ""
		}, "Topic"},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "graphhopper.api_key", envKey("NAV_GRAPHHOPPER__API_KEY"))
	assert.Equal(t, "log.level", envKey("NAV_LOG__LEVEL"))
}
