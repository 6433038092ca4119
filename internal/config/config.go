// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds all LifeLink server settings.
type Config struct {
	Port         string `yaml:"port"`
	Storage      string `yaml:"storage"` // sqlite, memory
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`

	Auth AuthConfig `yaml:"auth"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig configures browser identity and credential handling.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	CookieSecure bool   `yaml:"cookie_secure"`
	BcryptCost   int    `yaml:"bcrypt_cost"`
	// Strict enables password hashing and verification. When false, sign-in
	// accepts any password and creates unknown users.
	Strict bool `yaml:"strict"`
}

// RateLimitConfig configures the sign-in token bucket.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`  // tokens per second
	Burst float64 `yaml:"burst"` // bucket capacity
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         "8080",
		Storage:      StorageSQLite,
		DatabasePath: "lifelink.db",
		LogLevel:     "info",
		Auth: AuthConfig{
			CookieSecure: true,
			BcryptCost:   12,
		},
		RateLimit: RateLimitConfig{
			Rate:  0.2,
			Burst: 5,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("STORAGE"); v != "" {
		c.Storage = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	// Secure cookies stay on unless explicitly disabled for local development.
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		c.Auth.CookieSecure = v != "false"
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		c.Auth.BcryptCost = cost
	}
	if v := os.Getenv("AUTH_STRICT"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_STRICT: %w", err)
		}
		c.Auth.Strict = strict
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost must be between 4 and 14, got %d", c.Auth.BcryptCost)
	}
	switch c.Storage {
	case StorageSQLite:
		if c.DatabasePath == "" {
			return errors.New("database path is required for sqlite storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q (want sqlite or memory)", c.Storage)
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
