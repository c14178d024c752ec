// Package config loads the CLI configuration: defaults, then an optional
// YAML file, then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Wallet struct {
	BaseURL   string `yaml:"base_url"`
	ClientID  string `yaml:"client_id"`
	BrandName string `yaml:"brand_name"`
}

type Config struct {
	APIBaseURL   string `yaml:"api_base_url"`
	StorageDir   string `yaml:"storage_dir"`
	RedisURL     string `yaml:"redis_url"`
	MetricsAddr  string `yaml:"metrics_addr"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Wallet       Wallet `yaml:"wallet"`
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		APIBaseURL:   "http://localhost:5000",
		StorageDir:   filepath.Join(home, ".storefront"),
		OTLPEndpoint: "localhost:4317",
		Wallet: Wallet{
			BaseURL:   "https://api-m.sandbox.paypal.com",
			BrandName: "QUQU LONDON",
		},
	}
}

// Load reads path if it exists and applies environment overrides. An empty
// path checks the default location ($HOME/.storefront/config.yaml).
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = filepath.Join(cfg.StorageDir, "config.yaml")
	}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus env is a valid configuration.
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"STOREFRONT_API_URL":          &cfg.APIBaseURL,
		"STOREFRONT_STORAGE_DIR":      &cfg.StorageDir,
		"STOREFRONT_REDIS_URL":        &cfg.RedisURL,
		"STOREFRONT_METRICS_ADDR":     &cfg.MetricsAddr,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &cfg.OTLPEndpoint,
		"STOREFRONT_WALLET_URL":       &cfg.Wallet.BaseURL,
		"STOREFRONT_WALLET_CLIENT_ID": &cfg.Wallet.ClientID,
	}
	for name, target := range overrides {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}
}
