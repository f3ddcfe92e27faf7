package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AppEnv:                  "test",
		Port:                    "8080",
		DatabaseURL:             "postgres://localhost:5432/choreboard",
		RedisURL:                "redis://localhost:6379",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     10,
		ActivityFeedLimit:       50,
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validate(validConfig()))
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg = validConfig()
	cfg.RedisURL = ""
	err = validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestValidate_ConnectionLimits(t *testing.T) {
	cfg := validConfig()
	cfg.MaxWebSocketConnections = 0
	require.Error(t, validate(cfg))

	cfg = validConfig()
	cfg.MaxConnectionsPerIP = -1
	require.Error(t, validate(cfg))
}
