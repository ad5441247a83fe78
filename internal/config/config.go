// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Table names and the region selector are
// opaque handles passed through to the storage layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	RequestTimeout int    `yaml:"request_timeout_seconds"`
}

// DatabaseConfig holds connection settings for the record store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
	MigrationsPath  string `yaml:"migrations_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig holds token validation settings.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	SignupHookSecret string `yaml:"signup_hook_secret"`
}

// RateLimitConfig holds per-caller rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// Config is the root configuration.
type Config struct {
	Region         string          `yaml:"region"`
	LockTableName  string          `yaml:"lock_table_name"`
	GroupTableName string          `yaml:"group_table_name"`
	UserPoolID     string          `yaml:"user_pool_id"`
	Server         ServerConfig    `yaml:"server"`
	Database       DatabaseConfig  `yaml:"database"`
	Logging        LoggingConfig   `yaml:"logging"`
	Auth           AuthConfig      `yaml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	CORSOrigins    []string        `yaml:"cors_origins"`
}

// Load reads configuration from CONFIG_PATH (if set) and applies environment
// overrides on top.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LockTableName:  "locks",
		GroupTableName: "groups",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 5,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			MigrationsPath: "migrations",
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		// Any origin by default, matching the original deployment. Narrow
		// this in production via CORS_ALLOWED_ORIGINS.
		CORSOrigins: []string{"*"},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Region, "REGION")
	setString(&cfg.LockTableName, "LOCK_TABLE_NAME")
	setString(&cfg.GroupTableName, "GROUP_TABLE_NAME")
	setString(&cfg.UserPoolID, "USER_POOL_ID")

	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Server.RequestTimeout, "REQUEST_TIMEOUT_SECONDS")

	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setInt(&cfg.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS")
	setInt(&cfg.Database.MaxIdleConns, "DATABASE_MAX_IDLE_CONNS")
	setInt(&cfg.Database.ConnMaxLifetime, "DATABASE_CONN_MAX_LIFETIME_SECONDS")
	setString(&cfg.Database.MigrationsPath, "MIGRATIONS_PATH")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.Output, "LOG_OUTPUT")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.SignupHookSecret, "SIGNUP_HOOK_SECRET")

	setInt(&cfg.RateLimit.RequestsPerSecond, "RATE_LIMIT_RPS")
	setInt(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST")

	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		var origins []string
		for _, origin := range strings.Split(raw, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.LockTableName) == "" {
		return fmt.Errorf("lock table name is required")
	}
	if strings.TrimSpace(c.GroupTableName) == "" {
		return fmt.Errorf("group table name is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}
