package config

import (
	"fmt"
	"time"

	"github.com/coopdesk/backoffice/internal/env"
)

// ClientConfig holds configuration for the backofficectl command line client.
// Flags override these values.
type ClientConfig struct {
	APIURL  string        `env:"BACKOFFICE_API_URL" default:"http://localhost:8081/api/v1"`
	Token   string        `env:"BACKOFFICE_TOKEN"`
	Timeout time.Duration `env:"BACKOFFICE_CLIENT_TIMEOUT" default:"30s"`
}

// LoadClientConfig loads client configuration from environment.
func LoadClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}

	return cfg, nil
}
