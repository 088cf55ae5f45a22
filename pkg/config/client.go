package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// ClientConfig is the configuration of the terminal client.
type ClientConfig struct {
	BaseURL    string `env:"TWOFA_BASE_URL" env-default:"http://localhost:4000/modules/two-factor-authentication"`
	Token      string `env:"TWOFA_TOKEN"`
	AuthScheme string `env:"TWOFA_AUTH_SCHEME" env-default:"Token"`
	Window     int    `env:"TWOFA_WINDOW_SECONDS" env-default:"59"`
	// StoreDir keeps code issue times across restarts. Empty keeps them in
	// memory only.
	StoreDir string `env:"TWOFA_STORE_DIR"`
	// Account scopes stored issue times when several users share StoreDir.
	Account string `env:"TWOFA_ACCOUNT"`
}

// LoadClientConfig reads ClientConfig from the environment.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("failed to read client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("TWOFA_BASE_URL is required")
	}
	if c.Window < 1 {
		return fmt.Errorf("invalid TWOFA_WINDOW_SECONDS %d: must be at least 1", c.Window)
	}
	return nil
}
