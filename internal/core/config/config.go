package config

import (
	"github.com/htngan/walletfeed/internal/core/domain"
	rediscache "github.com/htngan/walletfeed/internal/infra/redis"
	"github.com/htngan/walletfeed/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Logging  LoggingConfig     `yaml:"logging"`
	Explorer ExplorerConfig    `yaml:"explorer"`
	Price    PriceConfig       `yaml:"price"`
	Redis    rediscache.Config `yaml:"redis"`
	Database postgres.Config   `yaml:"database"`
	Networks []domain.Network  `yaml:"networks"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ExplorerConfig holds block-explorer API settings. The API key is required
// by the explorer adapter; it is typically supplied via ${EXPLORER_API_KEY}.
type ExplorerConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// PriceConfig holds price API settings.
type PriceConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// AllNetworks returns the built-in network registry with config entries
// overriding same-named defaults and unknown entries appended.
func (c *AppConfig) AllNetworks() []domain.Network {
	merged := make([]domain.Network, len(domain.BuiltinNetworks))
	copy(merged, domain.BuiltinNetworks)

	for _, n := range c.Networks {
		replaced := false
		for i := range merged {
			if merged[i].Name == n.Name {
				merged[i] = n
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, n)
		}
	}
	return merged
}
