package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"slothold/internal/events"
	"slothold/internal/reservation"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// MemoryFallback serves from process memory while Redis is down. Holds are then only
		// exclusive within this process.
		MemoryFallback bool `yaml:"memory_fallback"`
	} `yaml:"redis"`

	Reservation struct {
		LeaseMinutes       int `yaml:"lease_minutes"`
		ExtensionMinutes   int `yaml:"extension_minutes"`
		WarningMinutes     int `yaml:"warning_minutes"`
		MaxDurationMinutes int `yaml:"max_duration_minutes"`
	} `yaml:"reservation"`

	Janitor struct {
		Enabled         bool `yaml:"enabled"`
		IntervalSeconds int  `yaml:"interval_seconds"`
	} `yaml:"janitor"`

	HTTP struct {
		Port int `yaml:"port"`
		// RateLimitEnabled defaults to true when omitted.
		RateLimitEnabled *bool   `yaml:"rate_limit_enabled"`
		RateLimitRPS     float64 `yaml:"rate_limit_rps"`
		RateLimitBurst   int     `yaml:"rate_limit_burst"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Events struct {
		Enabled bool   `yaml:"enabled"`
		Channel string `yaml:"channel"`
	} `yaml:"events"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders. Variables from a .env
// file in the working directory are loaded first when the file exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes config data and fills defaults.
func Parse(data []byte) (*Config, error) {
	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RateLimitRPS == 0 {
		c.HTTP.RateLimitRPS = 20
	}
	if c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = 40
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Events.Channel == "" {
		c.Events.Channel = events.DefaultChannel
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) validate() error {
	if c.Reservation.LeaseMinutes < 0 || c.Reservation.ExtensionMinutes < 0 ||
		c.Reservation.WarningMinutes < 0 || c.Reservation.MaxDurationMinutes < 0 {
		return errors.New("config: reservation durations must not be negative")
	}
	if c.Reservation.MaxDurationMinutes > reservation.DefaultMaxEstimatedDuration {
		return fmt.Errorf("config: reservation.max_duration_minutes must be at most %d", reservation.DefaultMaxEstimatedDuration)
	}
	if c.Janitor.IntervalSeconds < 0 {
		return errors.New("config: janitor.interval_seconds must not be negative")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return errors.New("config: http rate limits must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// Policy returns the reservation lease rules. Unset values take the engine defaults.
func (c *Config) Policy() reservation.Policy {
	return reservation.Policy{
		LeaseDuration:        minutes(c.Reservation.LeaseMinutes),
		ExtensionDuration:    minutes(c.Reservation.ExtensionMinutes),
		WarningThreshold:     minutes(c.Reservation.WarningMinutes),
		MaxEstimatedDuration: c.Reservation.MaxDurationMinutes,
	}
}

// RateLimit returns the token bucket for mutating API requests. Zero rps means unlimited.
func (c *Config) RateLimit() (rps float64, burst int) {
	if c.HTTP.RateLimitEnabled != nil && !*c.HTTP.RateLimitEnabled {
		return 0, 0
	}
	return c.HTTP.RateLimitRPS, c.HTTP.RateLimitBurst
}

func (c *Config) JanitorInterval() time.Duration {
	if c.Janitor.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Janitor.IntervalSeconds) * time.Second
}

func (c *Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
