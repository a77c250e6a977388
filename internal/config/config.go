// Package config loads process configuration from a YAML file, a local .env
// file, and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr          = ":8080"
	defaultLookbackDays        = 30
	defaultParallelism         = 4
	defaultConfidenceThreshold = 0.7
	defaultQuoteCacheTTL       = 30 * time.Minute
	defaultLogLevel            = "info"
)

// Config is the validated process configuration.
type Config struct {
	ListenAddr string

	PostgresDSN   string
	ClickHouseDSN string // empty disables the quote history sink
	UseMemory     bool   // in-memory stores, for local development

	FMPAPIKey     string
	FinnhubAPIKey string
	QuoteCacheTTL time.Duration

	Lookback            time.Duration
	Parallelism         int
	ConfidenceThreshold float64

	LogLevel string
}

// rawConfig mirrors the YAML layout before validation and defaulting.
type rawConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	UseMemory  bool   `yaml:"use_memory"`
	LogLevel   string `yaml:"log_level"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	ClickHouse struct {
		DSN string `yaml:"dsn"`
	} `yaml:"clickhouse"`

	MarketData struct {
		FMPAPIKey     string        `yaml:"fmp_api_key"`
		FinnhubAPIKey string        `yaml:"finnhub_api_key"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"market_data"`

	Scraper struct {
		LookbackDays        int     `yaml:"lookback_days"`
		Parallelism         int     `yaml:"parallelism"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"scraper"`
}

// Load reads the YAML file at path (optional, "" skips it), overlays .env and
// environment variables, applies defaults and validates. Secrets are expected
// from the environment, not the YAML file.
func Load(path string) (*Config, error) {
	// Missing .env is the normal production case
	_ = godotenv.Load()

	var raw rawConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:          raw.ListenAddr,
		UseMemory:           raw.UseMemory,
		LogLevel:            raw.LogLevel,
		PostgresDSN:         raw.Postgres.DSN,
		ClickHouseDSN:       raw.ClickHouse.DSN,
		FMPAPIKey:           raw.MarketData.FMPAPIKey,
		FinnhubAPIKey:       raw.MarketData.FinnhubAPIKey,
		QuoteCacheTTL:       raw.MarketData.CacheTTL,
		Lookback:            time.Duration(raw.Scraper.LookbackDays) * 24 * time.Hour,
		Parallelism:         raw.Scraper.Parallelism,
		ConfidenceThreshold: raw.Scraper.ConfidenceThreshold,
	}
	overlayEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_URL"); v != "" {
		cfg.ClickHouseDSN = v
	}
	if v := os.Getenv("FMP_API_KEY"); v != "" {
		cfg.FMPAPIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.FinnhubAPIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if os.Getenv("USE_MEMORY") == "true" {
		cfg.UseMemory = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.QuoteCacheTTL <= 0 {
		cfg.QuoteCacheTTL = defaultQuoteCacheTTL
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookbackDays * 24 * time.Hour
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

func (c *Config) validate() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("postgres dsn is required unless use_memory is set")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
