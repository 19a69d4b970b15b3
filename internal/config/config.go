// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port      int    `env:"ASCENSION_PORT" envDefault:"3000"`
	DBPath    string `env:"ASCENSION_DB_PATH" envDefault:"data/ascension.db"` // empty keeps state in memory
	LogLevel  string `env:"ASCENSION_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ASCENSION_LOG_FORMAT" envDefault:"text"` // text or json
	AdminKey  string `env:"ASCENSION_ADMIN_KEY"`                    // bearer token for POST endpoints; empty leaves them open

	// Simulation
	MaxAdvanceHours       int           `env:"ASCENSION_MAX_ADVANCE_HOURS" envDefault:"24"`
	DefaultTimeMultiplier float64       `env:"ASCENSION_DEFAULT_TIME_MULTIPLIER" envDefault:"1"`
	AutoAdvanceInterval   time.Duration `env:"ASCENSION_AUTO_ADVANCE_INTERVAL" envDefault:"0s"` // 0 disables the clock
	AutoAdvanceHours      int           `env:"ASCENSION_AUTO_ADVANCE_HOURS" envDefault:"1"`
	AdvanceRateLimit      int           `env:"ASCENSION_ADVANCE_RATE_LIMIT" envDefault:"120"` // per client per hour

	// Randomness
	RandomOrgKey string `env:"ASCENSION_RANDOM_ORG_API_KEY"`
	Seed         uint64 `env:"ASCENSION_SEED" envDefault:"0"` // non-zero makes rolls reproducible

	// Qi tides
	TidesEnabled bool  `env:"ASCENSION_TIDES_ENABLED" envDefault:"false"`
	TideSeed     int64 `env:"ASCENSION_TIDE_SEED" envDefault:"42"`

	// Event stream
	WSHeartbeat      time.Duration `env:"ASCENSION_WS_HEARTBEAT_INTERVAL" envDefault:"30s"`
	WSMaxConnections int           `env:"ASCENSION_WS_MAX_CONNECTIONS" envDefault:"1000"`
	WSBuffer         int           `env:"ASCENSION_WS_BUFFER" envDefault:"64"`
	WSOrigins        []string      `env:"ASCENSION_WS_ORIGINS" envSeparator:","`

	// Tracing
	OTelEndpoint string `env:"ASCENSION_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"ASCENSION_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.MaxAdvanceHours < 1:
		return fmt.Errorf("config: max advance hours must be positive")
	case c.DefaultTimeMultiplier <= 0:
		return fmt.Errorf("config: default time multiplier must be positive")
	case c.AutoAdvanceInterval < 0:
		return fmt.Errorf("config: auto advance interval must not be negative")
	case c.AutoAdvanceHours < 1 || c.AutoAdvanceHours > c.MaxAdvanceHours:
		return fmt.Errorf("config: auto advance hours must be within [1, %d]", c.MaxAdvanceHours)
	case c.WSMaxConnections < 1:
		return fmt.Errorf("config: websocket max connections must be positive")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("config: log format %q must be text or json", c.LogFormat)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
