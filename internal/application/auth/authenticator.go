package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Default configuration values.
const (
	DefaultIssuer   = "backoffice"
	DefaultTokenTTL = 12 * time.Hour
	DefaultLeeway   = 30 * time.Second
	MinSecretLength = 32
)

// Config holds configuration for the Authenticator.
type Config struct {
	Secret   []byte        // HMAC key for HS256 tokens
	Issuer   string        // Expected and issued "iss" claim
	TokenTTL time.Duration // Lifetime of issued tokens
	Leeway   time.Duration // Clock skew tolerated on exp/nbf
}

// Principal is the authenticated caller.
type Principal struct {
	Subject   string
	ExpiresAt time.Time
}

// Authenticator issues and validates HS256 bearer tokens.
type Authenticator struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	leeway   time.Duration
	now      func() time.Time
}

// NewAuthenticator creates an authenticator. Applies defaults for zero config
// values and rejects secrets shorter than MinSecretLength.
func NewAuthenticator(config Config) (*Authenticator, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.Leeway < 0 {
		config.Leeway = DefaultLeeway
	}

	return &Authenticator{
		secret:   config.Secret,
		issuer:   config.Issuer,
		tokenTTL: config.TokenTTL,
		leeway:   config.Leeway,
		now:      time.Now,
	}, nil
}

// Issue signs a token for subject. A zero ttl uses the configured TokenTTL.
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		ttl = a.tokenTTL
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Validate parses and verifies a bearer token.
// Any failure is reported as domain.ErrUnauthorized wrapping the parse error.
func (a *Authenticator) Validate(ctx context.Context, token string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}

	return &Principal{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by the auth middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
