// Package config loads navsim configuration: built-in defaults, an optional
// YAML file, then NAV_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. NAV_GRAPHHOPPER__API_KEY.
const EnvPrefix = "NAV_"

// Config represents the complete navsim configuration
type Config struct {
	Navigation  NavigationConfig  `koanf:"navigation"`
	GraphHopper GraphHopperConfig `koanf:"graphhopper"`
	Cache       CacheConfig       `koanf:"cache"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Log         LogConfig         `koanf:"log"`
}

// NavigationConfig holds session defaults
type NavigationConfig struct {
	ArrivalThresholdMeters float64       `koanf:"arrival_threshold_m" validate:"gt=0"`
	BaseTickInterval       time.Duration `koanf:"base_tick_interval" validate:"gt=0"`
	DefaultSpeed           int           `koanf:"default_speed" validate:"oneof=1 2 5 10"`
	FirstSampleTimeout     time.Duration `koanf:"first_sample_timeout" validate:"gte=0"`
}

// GraphHopperConfig holds GraphHopper routing API settings
type GraphHopperConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	Locale  string        `koanf:"locale" validate:"required"`
}

// CacheConfig holds route cache settings
type CacheConfig struct {
	RouteTTL        time.Duration `koanf:"route_ttl" validate:"gt=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"gt=0"`
}

// TelemetryConfig holds the Kafka position topic. Empty brokers disable it.
type TelemetryConfig struct {
	Brokers []string `koanf:"brokers" validate:"omitempty,dive,hostname_port"`
	Topic   string   `koanf:"topic" validate:"required_with=Brokers"`
	GroupID string   `koanf:"group_id"`
}

// Enabled reports whether a Kafka cluster is configured.
func (t TelemetryConfig) Enabled() bool {
	return len(t.Brokers) > 0
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
}

var defaults = map[string]interface{}{
	"navigation.arrival_threshold_m":  50.0,
	"navigation.base_tick_interval":   time.Second,
	"navigation.default_speed":        1,
	"navigation.first_sample_timeout": 30 * time.Second,

	"graphhopper.base_url": "https://graphhopper.com/api/1",
	"graphhopper.timeout":  30 * time.Second,
	"graphhopper.locale":   "en",

	"cache.route_ttl":        15 * time.Minute,
	"cache.cleanup_interval": 5 * time.Minute,

	"telemetry.topic": "vehicle.positions",

	"log.level":       "info",
	"log.development": false,
}

var validate = validator.New()

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic(fmt.Sprintf("config: loading defaults: %v", err))
	}
	cfg, err := unmarshal(k)
	if err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and NAV_ environment variables, then validates it. A
// missing file is an error; an empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps NAV_GRAPHHOPPER__API_KEY to graphhopper.api_key.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
