package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, int64(10000), cfg.MaxWebSocketConnections)
	assert.Equal(t, 20, cfg.MaxConnectionsPerIP)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_WEBSOCKET_CONNECTIONS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, int64(500), cfg.MaxWebSocketConnections)
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero max connections", "MAX_WEBSOCKET_CONNECTIONS", "0"},
		{"negative per-ip cap", "MAX_CONNECTIONS_PER_IP", "-1"},
		{"zero rate", "CONNECTION_RATE_PER_IP", "0"},
		{"zero burst", "CONNECTION_BURST_PER_IP", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
