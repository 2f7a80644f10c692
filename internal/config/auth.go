package config

import (
	"fmt"
	"time"
)

// MinJWTSecretLength mirrors the authenticator's minimum HMAC key size.
const MinJWTSecretLength = 32

// AuthConfig holds bearer token configuration.
type AuthConfig struct {
	JWTSecret string        `env:"BACKOFFICE_JWT_SECRET,required"`
	Issuer    string        `env:"BACKOFFICE_JWT_ISSUER" default:"backoffice"`
	TokenTTL  time.Duration `env:"BACKOFFICE_JWT_TTL" default:"12h"`
	Leeway    time.Duration `env:"BACKOFFICE_JWT_LEEWAY" default:"30s"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("BACKOFFICE_JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("BACKOFFICE_JWT_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}
