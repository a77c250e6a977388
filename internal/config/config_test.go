package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
log_level: debug
postgres:
  dsn: postgres://app@localhost:5432/treasuries
clickhouse:
  dsn: clickhouse://localhost:9000/treasuries
market_data:
  cache_ttl: 10m
scraper:
  lookback_days: 14
  parallelism: 2
  confidence_threshold: 0.85
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.PostgresDSN != "postgres://app@localhost:5432/treasuries" {
		t.Errorf("PostgresDSN = %q", cfg.PostgresDSN)
	}
	if cfg.QuoteCacheTTL != 10*time.Minute {
		t.Errorf("QuoteCacheTTL = %v", cfg.QuoteCacheTTL)
	}
	if cfg.Lookback != 14*24*time.Hour {
		t.Errorf("Lookback = %v", cfg.Lookback)
	}
	if cfg.Parallelism != 2 {
		t.Errorf("Parallelism = %d", cfg.Parallelism)
	}
	if cfg.ConfidenceThreshold != 0.85 {
		t.Errorf("ConfidenceThreshold = %v", cfg.ConfidenceThreshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_DefaultsWithMemoryMode(t *testing.T) {
	path := writeConfig(t, "use_memory: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("Default ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.QuoteCacheTTL != 30*time.Minute {
		t.Errorf("Default QuoteCacheTTL = %v", cfg.QuoteCacheTTL)
	}
	if cfg.Lookback != 30*24*time.Hour {
		t.Errorf("Default Lookback = %v", cfg.Lookback)
	}
	if cfg.Parallelism != 4 {
		t.Errorf("Default Parallelism = %d", cfg.Parallelism)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Errorf("Default ConfidenceThreshold = %v", cfg.ConfidenceThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Default LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
use_memory: true
listen_addr: ":9090"
`)
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("FMP_API_KEY", "test-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("Env must win over file: ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.FMPAPIKey != "test-key" {
		t.Errorf("FMPAPIKey = %q", cfg.FMPAPIKey)
	}
}

func TestLoad_RequiresPostgresUnlessMemory(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":8080\"\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for missing postgres dsn")
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"confidence above one", "use_memory: true\nscraper:\n  confidence_threshold: 1.5\n"},
		{"unknown log level", "use_memory: true\nlog_level: verbose\n"},
		{"malformed yaml", "use_memory: [\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}
