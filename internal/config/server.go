// Package config defines the environment-driven configuration of the
// backoffice binaries.
package config

import (
	"fmt"
	"time"

	"github.com/coopdesk/backoffice/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Auth            AuthConfig
	Members         MembersConfig
	Views           ViewStoreConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"BACKOFFICE_SHUTDOWN_TIMEOUT" default:"10s"`
}

// HTTPConfig holds HTTP server configuration.
// Zero values fall back to the HTTP server defaults.
type HTTPConfig struct {
	Host              string        `env:"BACKOFFICE_HTTP_HOST"`
	Port              string        `env:"BACKOFFICE_HTTP_PORT" default:"8081"`
	ReadTimeout       time.Duration `env:"BACKOFFICE_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"BACKOFFICE_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"BACKOFFICE_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"BACKOFFICE_HTTP_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `env:"BACKOFFICE_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"BACKOFFICE_HTTP_MAX_BODY_BYTES"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
