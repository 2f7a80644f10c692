package config

import (
	"fmt"

	"github.com/coopdesk/backoffice/internal/env"
)

// TestConfig holds optional backends for integration tests.
// Tests skip the backends whose variables are unset.
type TestConfig struct {
	PostgresURL string `env:"TEST_POSTGRES_URL"`
	MySQLDSN    string `env:"TEST_MYSQL_DSN"`
	GCSBucket   string `env:"TEST_GCS_BUCKET"`
}

// LoadTestConfig loads test configuration from environment.
func LoadTestConfig() (*TestConfig, error) {
	cfg := &TestConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load test config: %w", err)
	}

	return cfg, nil
}
