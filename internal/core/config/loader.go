package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Default returns a usable configuration without a config file: built-in
// networks, public endpoints, explorer key from the environment.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file. Environment variables in the
// file body (${VAR}) are expanded before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Explorer.BaseURL == "" {
		cfg.Explorer.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if cfg.Explorer.APIKey == "" {
		cfg.Explorer.APIKey = os.Getenv("EXPLORER_API_KEY")
	}
	if cfg.Price.BaseURL == "" {
		cfg.Price.BaseURL = "https://api.coingecko.com/api/v3"
	}
}
