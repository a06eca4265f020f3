package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Name     string `yaml:"name" env:"APP_NAME"`
	Port     int    `yaml:"port" env:"APP_PORT"`
	Debug    bool   `yaml:"debug" env:"APP_DEBUG"`
	Database struct {
		DSN string `yaml:"dsn" env:"DATABASE_URL"`
	} `yaml:"database"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"APP_SESSION_TTL"`
	Origins    []string      `yaml:"origins" env:"APP_ORIGINS"`
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
name: test-app
port: 8080
debug: false
session_ttl: 90s
database:
  dsn: file:test.db
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "test-app" {
		t.Fatalf("expected 'test-app', got '%s'", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected 8080, got %d", cfg.Port)
	}
	if cfg.Debug {
		t.Fatal("expected debug to be false")
	}
	if cfg.SessionTTL != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.SessionTTL)
	}
	if cfg.Database.DSN != "file:test.db" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_FILE", "clinic.db")
	path := writeTemp(t, "database:\n  dsn: file:${TEST_DB_FILE}\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "file:clinic.db" {
		t.Fatalf("expected expanded dsn, got %q", cfg.Database.DSN)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, "name: default\nport: 3000\n")

	t.Setenv("APP_NAME", "from-env")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("APP_SESSION_TTL", "15m")
	t.Setenv("APP_ORIGINS", "http://a.test, http://b.test")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "from-env" {
		t.Fatalf("expected 'from-env', got '%s'", cfg.Name)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected 9090, got %d", cfg.Port)
	}
	if !cfg.Debug {
		t.Fatal("expected debug to be true from env")
	}
	if cfg.Database.DSN != "postgres://localhost/clinic" {
		t.Fatalf("expected nested override, got %q", cfg.Database.DSN)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Fatalf("expected 15m, got %s", cfg.SessionTTL)
	}
	if len(cfg.Origins) != 2 || cfg.Origins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.Origins)
	}
}

func TestEnvOverride_InvalidValue(t *testing.T) {
	t.Setenv("APP_PORT", "not-a-number")

	var cfg testConfig
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatal("expected error for invalid int")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := testConfig{Name: "kept"}
	if err := LoadOrDefault("/nonexistent/config.yaml", &cfg); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Name != "kept" {
		t.Fatalf("expected defaults to be kept, got '%s'", cfg.Name)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MCP_APPS_DOTENV_PROBE=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MCP_APPS_DOTENV_PROBE", "")
	os.Unsetenv("MCP_APPS_DOTENV_PROBE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("MCP_APPS_DOTENV_PROBE"); got != "loaded" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
