package config

import (
	"fmt"
)

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	// Permission must appear in a token's permissions claim. Empty disables the check.
	Permission string
}

// NewJWTConfig builds the JWT configuration from the auth section.
// A nil result without error means authentication is disabled.
func NewJWTConfig(auth AuthConfig) (*JWTConfig, error) {
	if auth.JWTSecret == "" {
		return nil, nil
	}

	config := &JWTConfig{
		Secret:          auth.JWTSecret,
		ExpirationHours: auth.ExpirationHours,
		Permission:      auth.Permission,
	}
	if config.ExpirationHours == 0 {
		config.ExpirationHours = 24
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
