package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "/api", c.BasePath)
	assert.Empty(t, c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenStoreTTL)
	assert.Equal(t, 24*time.Hour, c.VerificationTokenTTL)
	assert.Equal(t, 3*time.Minute, c.VerificationResendThrottle)
	assert.Equal(t, time.Hour, c.PasswordResetTokenTTL)
	assert.Equal(t, 10, c.PasswordHashCost)
	assert.Equal(t, MailTransportLog, c.MailTransport)
	assert.Equal(t, "admin@pgfinder.com", c.AdminEmail)
	assert.Empty(t, c.AdminPassword)
	assert.False(t, c.DevMode)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origLookup := lookupEnv
	lookupEnv = func(string) (string, bool) { return "", false }
	t.Cleanup(func() { lookupEnv = origLookup })

	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		c.SecretKey = "k"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: "secret key is required"},
		{name: "dev mode allows missing secret", mutate: func(c *Config) { c.SecretKey = ""; c.DevMode = true }},
		{name: "missing dsn", mutate: func(c *Config) { c.DatabaseDSN = "" }, wantErr: "database dsn is required"},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTokenValidityDuration = 0 }, wantErr: "access token validity must be positive"},
		{name: "zero store timeout", mutate: func(c *Config) { c.StoreTimeout = 0 }, wantErr: "store timeout must be positive"},
		{name: "negative mail timeout", mutate: func(c *Config) { c.MailTimeout = -time.Second }, wantErr: "mail timeout must be positive"},
		{name: "negative throttle", mutate: func(c *Config) { c.VerificationResendThrottle = -time.Second }, wantErr: "throttle must not be negative"},
		{name: "bad cost", mutate: func(c *Config) { c.PasswordHashCost = 99 }, wantErr: "password hash cost"},
		{name: "bad transport", mutate: func(c *Config) { c.MailTransport = "pigeon" }, wantErr: "unknown mail transport pigeon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
