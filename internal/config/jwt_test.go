package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig_DisabledWithoutSecret(t *testing.T) {
	cfg, err := NewJWTConfig(AuthConfig{})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestNewJWTConfig(t *testing.T) {
	tests := []struct {
		name          string
		auth          AuthConfig
		expectedHours int
		wantErr       bool
	}{
		{name: "default expiration", auth: AuthConfig{JWTSecret: "0123456789abcdef"}, expectedHours: 24},
		{name: "custom expiration", auth: AuthConfig{JWTSecret: "0123456789abcdef", ExpirationHours: 2}, expectedHours: 2},
		{name: "negative expiration", auth: AuthConfig{JWTSecret: "0123456789abcdef", ExpirationHours: -1}, wantErr: true},
		{name: "short secret", auth: AuthConfig{JWTSecret: "short"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewJWTConfig(tt.auth)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHours, cfg.ExpirationHours)
		})
	}
}

func TestNewJWTConfig_KeepsPermission(t *testing.T) {
	cfg, err := NewJWTConfig(AuthConfig{JWTSecret: "0123456789abcdef", Permission: "furs:download"})
	require.NoError(t, err)
	assert.Equal(t, "furs:download", cfg.Permission)
}
