package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvLogLevel, EnvPostgresHost, EnvPostgresPort, EnvPostgresUser, EnvPostgresPassword,
		EnvPostgresDatabase, EnvClickHouseHost, EnvNATSURL, EnvAPIPort, EnvAPIKeys,
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Reference.Backend != "catalog" {
		t.Errorf("Reference.Backend = %q, want %q", cfg.Reference.Backend, "catalog")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Storage.Postgres.Host != "" {
		t.Errorf("Storage.Postgres.Host = %q, want empty", cfg.Storage.Postgres.Host)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
log:
  level: debug
  format: json
reference:
  backend: postgres
  catalog: catalog.yaml
  cache_ttl: 30s
storage:
  sqlite_path: /tmp/parses.db
  postgres:
    host: db.internal
    password: secret
api:
  port: 9090
nats:
  url: nats://localhost:4222
  result_subject: gds.results
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Reference.CacheTTL != 30*time.Second {
		t.Errorf("Reference.CacheTTL = %v, want 30s", cfg.Reference.CacheTTL)
	}
	// Unset keys keep their defaults.
	if cfg.Reference.CacheSize != 1024 {
		t.Errorf("Reference.CacheSize = %d, want 1024", cfg.Reference.CacheSize)
	}
	if cfg.Storage.Postgres.Port != 5432 {
		t.Errorf("Storage.Postgres.Port = %d, want 5432", cfg.Storage.Postgres.Port)
	}
	if cfg.NATS.Subject != "gds.reservations" {
		t.Errorf("NATS.Subject = %q, want %q", cfg.NATS.Subject, "gds.reservations")
	}

	sc := cfg.StorageSettings()
	if sc.SQLitePath != "/tmp/parses.db" || sc.Postgres.Host != "db.internal" || sc.Postgres.Password != "secret" {
		t.Errorf("StorageSettings() = %+v", sc)
	}
	if sc.ClickHouse.Host != "" {
		t.Errorf("ClickHouse.Host = %q, want empty", sc.ClickHouse.Host)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvPostgresHost, "pg.example")
	t.Setenv(EnvPostgresPort, "6543")
	t.Setenv(EnvAPIPort, "7070")
	t.Setenv(EnvAPIKeys, "key-one, key-two,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Storage.Postgres.Host != "pg.example" || cfg.Storage.Postgres.Port != 6543 {
		t.Errorf("Postgres = %s:%d, want pg.example:6543", cfg.Storage.Postgres.Host, cfg.Storage.Postgres.Port)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
	if !cfg.API.AuthEnabled {
		t.Error("API.AuthEnabled should be set by GDS_API_KEYS")
	}
	if strings.Join(cfg.API.APIKeys, "|") != "key-one|key-two" {
		t.Errorf("API.APIKeys = %v, want [key-one key-two]", cfg.API.APIKeys)
	}
}

func TestInvalidEnvironmentPort(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIPort, "eighty")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail on a non-numeric port")
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail on a missing file")
	}
	if _, err := Load(writeConfig(t, "log: [unclosed")); err == nil {
		t.Error("Load should fail on invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad backend", func(c *Config) { c.Reference.Backend = "redis" }, "reference.backend"},
		{"postgres backend without host", func(c *Config) { c.Reference.Backend = "postgres" }, "storage.postgres.host"},
		{"negative cache", func(c *Config) { c.Reference.CacheSize = -1 }, "cache_size"},
		{"port range", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"auth without keys", func(c *Config) { c.API.AuthEnabled = true }, "api_keys"},
		{"nats without subject", func(c *Config) { c.NATS.URL = "nats://x"; c.NATS.Subject = "" }, "nats.subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
