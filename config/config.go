// Package config loads PartsPipe configuration from environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Fetch   FetchConfig
	LLM     LLMConfig
	Store   StoreConfig
	Workers WorkerConfig
	// DomainHints maps a URL host substring to a vendor name,
	// e.g. "grundfos.com" -> "Grundfos". Loaded once at startup and
	// treated as read-only afterwards.
	DomainHints map[string]string `mapstructure:"domain_hints"`
}

// FetchConfig holds HTTP fetch settings.
type FetchConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
	RobotsCacheSize int           `mapstructure:"robots_cache_size"`
}

// LLMConfig holds model-routing settings for the fallback extractor.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Tasks maps a task name (e.g. "reason") to a model identifier.
	Tasks map[string]string `mapstructure:"tasks"`
}

// StoreConfig holds record-store settings.
type StoreConfig struct {
	OutputDir       string `mapstructure:"output_dir"`
	DefaultCurrency string `mapstructure:"default_currency"`
}

// WorkerConfig holds concurrency ceilings. LLM is lower than Fetch
// because the model backend is a paid, rate-limited resource.
type WorkerConfig struct {
	Fetch int `mapstructure:"fetch"`
	LLM   int `mapstructure:"llm"`
}

// Load loads configuration from environment variables and an optional
// config file (config.yaml in . or ./config).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("PARTSPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("fetch.user_agent", "PartsPipe/1.0 (https://github.com/gaurav-prasanna/partspipe)")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.requests_per_sec", 4.0)
	v.SetDefault("fetch.robots_cache_size", 128)

	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.tasks", map[string]string{"reason": "gpt-4o-mini"})

	v.SetDefault("store.output_dir", "data")
	v.SetDefault("store.default_currency", "ZAR")

	v.SetDefault("workers.fetch", 8)
	v.SetDefault("workers.llm", 2)

	v.SetDefault("domain_hints", map[string]string{
		"grundfos.com": "Grundfos",
		"xylem.com":    "Xylem",
		"wilo.com":     "Wilo",
		"trojanuv.com": "TrojanUV",
	})
}

// validate checks the loaded configuration.
func validate(cfg *Config) error {
	if cfg.Workers.Fetch < 1 {
		return fmt.Errorf("workers.fetch must be at least 1, got %d", cfg.Workers.Fetch)
	}
	if cfg.Workers.LLM < 1 {
		return fmt.Errorf("workers.llm must be at least 1, got %d", cfg.Workers.LLM)
	}
	if cfg.Workers.LLM > cfg.Workers.Fetch {
		return fmt.Errorf("workers.llm (%d) must not exceed workers.fetch (%d)", cfg.Workers.LLM, cfg.Workers.Fetch)
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.Store.DefaultCurrency == "" {
		return fmt.Errorf("store.default_currency is required")
	}
	return nil
}
