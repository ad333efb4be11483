// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Roles      RolesConfig      `yaml:"roles"`
	Settlement SettlementConfig `yaml:"settlement"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// RolesConfig configures the privileged addresses.
type RolesConfig struct {
	Owner           string `yaml:"owner"`
	Reporter        string `yaml:"reporter"`
	WithdrawAddress string `yaml:"withdraw_address"`
}

// SettlementConfig configures settlement parameters. All of these can be
// changed at runtime by the owner; the config values are the defaults
// applied at startup.
type SettlementConfig struct {
	FeeNumerator      uint64 `yaml:"fee_numerator"`
	FeeDenominator    uint64 `yaml:"fee_denominator"`
	DefaultWindowSecs int64  `yaml:"default_window_secs"`
	RewardAmount      uint64 `yaml:"reward_amount"`
	RewardEnabled     bool   `yaml:"reward_enabled"`
	ListingLockShards int    `yaml:"listing_lock_shards"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies METERPAY_* environment variables to the
// config. Environment variables always override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("METERPAY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("METERPAY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("METERPAY_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("METERPAY_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("METERPAY_OWNER"); v != "" {
		cfg.Roles.Owner = v
	}
	if v := os.Getenv("METERPAY_REPORTER"); v != "" {
		cfg.Roles.Reporter = v
	}
	if v := os.Getenv("METERPAY_WITHDRAW_ADDRESS"); v != "" {
		cfg.Roles.WithdrawAddress = v
	}
	if v := os.Getenv("METERPAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METERPAY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "meterpay.db"
	}
	if cfg.Settlement.FeeDenominator == 0 {
		// 10% network fee: 10/1 percent.
		cfg.Settlement.FeeNumerator = 10
		cfg.Settlement.FeeDenominator = 1
	}
	if cfg.Settlement.DefaultWindowSecs == 0 {
		// One week.
		cfg.Settlement.DefaultWindowSecs = 7 * 24 * 3600
	}
	if cfg.Settlement.ListingLockShards == 0 {
		cfg.Settlement.ListingLockShards = 32
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	switch cfg.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
	if cfg.Roles.Owner == "" {
		return fmt.Errorf("roles.owner is required")
	}
	if cfg.Settlement.FeeDenominator == 0 {
		return fmt.Errorf("settlement.fee_denominator must be nonzero")
	}
	if cfg.Settlement.FeeNumerator > 100*cfg.Settlement.FeeDenominator {
		return fmt.Errorf("settlement fee rate exceeds 100%%")
	}
	if cfg.Settlement.DefaultWindowSecs <= 0 {
		return fmt.Errorf("settlement.default_window_secs must be positive")
	}
	return nil
}

// DefaultWindow returns the default cap window as a duration.
func (c SettlementConfig) DefaultWindow() time.Duration {
	return time.Duration(c.DefaultWindowSecs) * time.Second
}
