// Package config loads Deckhand configuration from an optional YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete Deckhand configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Docker       DockerConfig       `yaml:"docker"`
	Realtime     RealtimeConfig     `yaml:"realtime"`
	HealthCheck  HealthCheckConfig  `yaml:"health_check"`
	LogRetention LogRetentionConfig `yaml:"log_retention"`
	Auth         AuthConfig         `yaml:"auth"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // "debug" or "release"
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DockerConfig contains container runtime settings.
type DockerConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

// RealtimeConfig contains websocket push settings.
type RealtimeConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	LogTail          string        `yaml:"log_tail"`
}

// HealthCheckConfig contains health check monitoring settings.
type HealthCheckConfig struct {
	Interval        time.Duration `yaml:"interval"`
	CPUThreshold    float64       `yaml:"cpu_threshold"`
	MemoryThreshold float64       `yaml:"memory_threshold"`
	Enabled         bool          `yaml:"enabled"`
}

// LogRetentionConfig contains audit log retention settings.
type LogRetentionConfig struct {
	Days int `yaml:"days"`
}

// AuthConfig contains the token verification settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			Mode:           "debug",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path: defaultDBPath(),
		},
		Docker: DockerConfig{
			Host:    "",
			Timeout: 30 * time.Second,
		},
		Realtime: RealtimeConfig{
			SnapshotInterval: 5 * time.Second,
			LogTail:          "100",
		},
		HealthCheck: HealthCheckConfig{
			Enabled:         true,
			Interval:        30 * time.Second,
			CPUThreshold:    90.0,
			MemoryThreshold: 90.0,
		},
		LogRetention: LogRetentionConfig{
			Days: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// DECKHAND_CONFIG_FILE (if set), then DECKHAND_* environment variables.
//
// Environment variables:
//   - DECKHAND_SERVER_HOST (default: "0.0.0.0")
//   - DECKHAND_SERVER_PORT (default: "8080")
//   - DECKHAND_SERVER_MODE (default: "debug")
//   - DECKHAND_ALLOWED_ORIGINS (comma separated, default: "*")
//   - DECKHAND_DB_PATH (default: "/app/data/deckhand.db" or "./deckhand.db")
//   - DECKHAND_DOCKER_HOST (default: taken from DOCKER_HOST)
//   - DECKHAND_DOCKER_TIMEOUT (default: "30s")
//   - DECKHAND_SNAPSHOT_INTERVAL (default: "5s", "0" disables snapshots)
//   - DECKHAND_LOG_TAIL (default: "100")
//   - DECKHAND_HEALTH_CHECK_ENABLED (default: "true")
//   - DECKHAND_HEALTH_CHECK_INTERVAL (default: "30s")
//   - DECKHAND_CPU_THRESHOLD (default: "90")
//   - DECKHAND_MEMORY_THRESHOLD (default: "90")
//   - DECKHAND_LOG_RETENTION_DAYS (default: "30")
//   - DECKHAND_JWT_SECRET (default: empty, auth disabled)
//   - DECKHAND_LOG_LEVEL (default: "info")
//   - DECKHAND_LOG_FORMAT (default: "text")
func Load(logger *logrus.Logger) (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DECKHAND_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	env := envReader{logger: logger}
	cfg.Server.Host = env.str("DECKHAND_SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = env.str("DECKHAND_SERVER_PORT", cfg.Server.Port)
	cfg.Server.Mode = env.str("DECKHAND_SERVER_MODE", cfg.Server.Mode)
	cfg.Server.AllowedOrigins = env.list("DECKHAND_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Database.Path = env.str("DECKHAND_DB_PATH", cfg.Database.Path)
	cfg.Docker.Host = env.str("DECKHAND_DOCKER_HOST", cfg.Docker.Host)
	cfg.Docker.Timeout = env.duration("DECKHAND_DOCKER_TIMEOUT", cfg.Docker.Timeout)
	cfg.Realtime.SnapshotInterval = env.duration("DECKHAND_SNAPSHOT_INTERVAL", cfg.Realtime.SnapshotInterval)
	cfg.Realtime.LogTail = env.str("DECKHAND_LOG_TAIL", cfg.Realtime.LogTail)
	cfg.HealthCheck.Enabled = env.boolean("DECKHAND_HEALTH_CHECK_ENABLED", cfg.HealthCheck.Enabled)
	cfg.HealthCheck.Interval = env.duration("DECKHAND_HEALTH_CHECK_INTERVAL", cfg.HealthCheck.Interval)
	cfg.HealthCheck.CPUThreshold = env.float("DECKHAND_CPU_THRESHOLD", cfg.HealthCheck.CPUThreshold)
	cfg.HealthCheck.MemoryThreshold = env.float("DECKHAND_MEMORY_THRESHOLD", cfg.HealthCheck.MemoryThreshold)
	cfg.LogRetention.Days = env.integer("DECKHAND_LOG_RETENTION_DAYS", cfg.LogRetention.Days)
	cfg.Auth.JWTSecret = env.str("DECKHAND_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.Level = env.str("DECKHAND_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.str("DECKHAND_LOG_FORMAT", cfg.Log.Format)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"server":            cfg.Server.Host + ":" + cfg.Server.Port,
		"mode":              cfg.Server.Mode,
		"database":          cfg.Database.Path,
		"docker_host":       cfg.Docker.Host,
		"docker_timeout":    cfg.Docker.Timeout,
		"snapshot_interval": cfg.Realtime.SnapshotInterval,
		"health_checks":     cfg.HealthCheck.Enabled,
		"retention_days":    cfg.LogRetention.Days,
		"auth":              cfg.Auth.JWTSecret != "",
	}).Info("Configuration loaded")

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// validate checks if the configuration is valid.
func validate(cfg *Config) error {
	if cfg.HealthCheck.CPUThreshold < 0 || cfg.HealthCheck.CPUThreshold > 100 {
		return errors.New("CPU threshold must be between 0 and 100")
	}
	if cfg.HealthCheck.MemoryThreshold < 0 || cfg.HealthCheck.MemoryThreshold > 100 {
		return errors.New("memory threshold must be between 0 and 100")
	}
	if cfg.HealthCheck.Interval < time.Second {
		return errors.New("health check interval must be at least 1 second")
	}
	if cfg.LogRetention.Days < 1 {
		return errors.New("log retention days must be at least 1")
	}
	if cfg.Docker.Timeout <= 0 {
		return errors.New("docker timeout must be positive")
	}
	if cfg.Realtime.SnapshotInterval < 0 {
		return errors.New("snapshot interval must not be negative")
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return nil
}

// ConfigureLogger applies the log settings to logger.
func (c LogConfig) ConfigureLogger(logger *logrus.Logger) {
	if level, err := logrus.ParseLevel(c.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// defaultDBPath prefers /app/data when running inside a container.
func defaultDBPath() string {
	if _, err := os.Stat("/app/data"); err == nil {
		return "/app/data/deckhand.db"
	}
	return "./deckhand.db"
}

// envReader reads typed environment overrides and warns about unparsable values.
type envReader struct {
	logger *logrus.Logger
}

func (e envReader) warn(key, value string, fallback any) {
	e.logger.WithFields(logrus.Fields{
		"key":     key,
		"value":   value,
		"default": fallback,
	}).Warn("Invalid configuration value, using default")
}

func (e envReader) str(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (e envReader) list(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e envReader) integer(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
		e.warn(key, value, fallback)
	}
	return fallback
}

func (e envReader) float(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
		e.warn(key, value, fallback)
	}
	return fallback
}

func (e envReader) boolean(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
		e.warn(key, value, fallback)
	}
	return fallback
}

// duration accepts values like "30s", "5m", "1h" and a bare "0".
func (e envReader) duration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
		e.warn(key, value, fallback)
	}
	return fallback
}
