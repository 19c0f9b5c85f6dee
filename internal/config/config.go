// Package config loads the gds_parser configuration: a YAML file over
// defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gds_parser/internal/storage"
)

// Config is the full runtime configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Reference ReferenceConfig `yaml:"reference"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	NATS      NATSConfig      `yaml:"nats"`
}

// LogConfig selects the log level, format and destination.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // Empty means stderr.
}

// ReferenceConfig configures code resolution.
type ReferenceConfig struct {
	Backend   string        `yaml:"backend"` // catalog, postgres or none
	Catalog   string        `yaml:"catalog"` // YAML catalog file.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// StorageConfig configures persistence. A backend with an empty host or
// path is disabled.
type StorageConfig struct {
	SQLitePath string           `yaml:"sqlite_path"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// PostgresConfig holds PostgreSQL settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ClickHouseConfig holds ClickHouse settings.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port        int      `yaml:"port"`
	AuthEnabled bool     `yaml:"auth_enabled"`
	APIKeys     []string `yaml:"api_keys"`
}

// NATSConfig configures the reservation feed.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Subject       string `yaml:"subject"`
	QueueGroup    string `yaml:"queue_group"`
	ResultSubject string `yaml:"result_subject"` // Empty disables publishing.
}

// Environment variable names.
const (
	EnvLogLevel         = "GDS_LOG_LEVEL"
	EnvPostgresHost     = "POSTGRES_HOST"
	EnvPostgresPort     = "POSTGRES_PORT"
	EnvPostgresUser     = "POSTGRES_USER"
	EnvPostgresPassword = "POSTGRES_PASSWORD"
	EnvPostgresDatabase = "POSTGRES_DATABASE"
	EnvClickHouseHost   = "CLICKHOUSE_HOST"
	EnvNATSURL          = "NATS_URL"
	EnvAPIPort          = "GDS_API_PORT"
	EnvAPIKeys          = "GDS_API_KEYS"
)

// DefaultConfig returns a configuration for local use: catalog resolution,
// a SQLite parse log and no server-side databases.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Reference: ReferenceConfig{
			Backend:   "catalog",
			CacheSize: 1024,
			CacheTTL:  10 * time.Minute,
		},
		Storage: StorageConfig{
			SQLitePath: "",
			Postgres: PostgresConfig{
				Port:     5432,
				Database: "gds",
				User:     "gds",
			},
			ClickHouse: ClickHouseConfig{
				Port:     9000,
				Database: "gds",
				User:     "default",
			},
		},
		API: APIConfig{
			Port: 8080,
		},
		NATS: NATSConfig{
			Subject:    "gds.reservations",
			QueueGroup: "gds_parser",
		},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// envOrDefault returns the environment variable value or a default.
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() error {
	var err error

	c.Log.Level = envOrDefault(EnvLogLevel, c.Log.Level)

	c.Storage.Postgres.Host = envOrDefault(EnvPostgresHost, c.Storage.Postgres.Host)
	c.Storage.Postgres.User = envOrDefault(EnvPostgresUser, c.Storage.Postgres.User)
	c.Storage.Postgres.Password = envOrDefault(EnvPostgresPassword, c.Storage.Postgres.Password)
	c.Storage.Postgres.Database = envOrDefault(EnvPostgresDatabase, c.Storage.Postgres.Database)
	if c.Storage.Postgres.Port, err = envIntOrDefault(EnvPostgresPort, c.Storage.Postgres.Port); err != nil {
		return err
	}

	c.Storage.ClickHouse.Host = envOrDefault(EnvClickHouseHost, c.Storage.ClickHouse.Host)
	c.NATS.URL = envOrDefault(EnvNATSURL, c.NATS.URL)

	if c.API.Port, err = envIntOrDefault(EnvAPIPort, c.API.Port); err != nil {
		return err
	}
	if keys := os.Getenv(EnvAPIKeys); keys != "" {
		c.API.APIKeys = nil
		for _, k := range strings.Split(keys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.API.APIKeys = append(c.API.APIKeys, k)
			}
		}
		c.API.AuthEnabled = true
	}
	return nil
}

// Validate checks a configuration for errors.
func Validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: invalid level %q (must be debug, info, warn or error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: invalid format %q (must be text or json)", cfg.Log.Format)
	}

	switch cfg.Reference.Backend {
	case "catalog", "none":
	case "postgres":
		if cfg.Storage.Postgres.Host == "" {
			return errors.New("reference.backend: postgres requires storage.postgres.host")
		}
	default:
		return fmt.Errorf("reference.backend: invalid backend %q (must be catalog, postgres or none)", cfg.Reference.Backend)
	}
	if cfg.Reference.CacheSize < 0 {
		return errors.New("reference.cache_size: must not be negative")
	}

	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port: %d out of range", cfg.API.Port)
	}
	if cfg.API.AuthEnabled && len(cfg.API.APIKeys) == 0 {
		return errors.New("api.api_keys: at least one key is required when auth is enabled")
	}

	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		return errors.New("nats.subject: required when nats.url is set")
	}

	return nil
}

// StorageSettings converts the storage section for storage.Open.
func (c *Config) StorageSettings() storage.Config {
	pg := c.Storage.Postgres
	ch := c.Storage.ClickHouse
	return storage.Config{
		SQLitePath: c.Storage.SQLitePath,
		Postgres: storage.PostgresConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			Database: pg.Database,
			User:     pg.User,
			Password: pg.Password,
		},
		ClickHouse: storage.ClickHouseConfig{
			Host:     ch.Host,
			Port:     ch.Port,
			Database: ch.Database,
			User:     ch.User,
			Password: ch.Password,
		},
	}
}
