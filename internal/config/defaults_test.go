package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Provider.AllowFallback)
	assert.False(t, cfg.Provider.Simulate)
	assert.Equal(t, `\\.\xeniface`, cfg.Provider.DevicePath)
	assert.Equal(t, 16*time.Second, cfg.Provider.PollInterval)
	assert.False(t, cfg.Reference.Enabled)
	assert.Equal(t, 4, cfg.Reference.Version)
	assert.Equal(t, 0.6, cfg.Reference.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 1.0, cfg.Host.AlertRate)
	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, Validate(cfg))
}

func TestApplyDefaults_KeepsSetValues(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{PollInterval: time.Minute, AllowFallback: true},
		Server:   ServerConfig{Port: 1234},
		Metrics:  MetricsConfig{Namespace: "guest"},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, time.Minute, cfg.Provider.PollInterval)
	assert.True(t, cfg.Provider.AllowFallback)
	assert.Equal(t, 1234, cfg.Server.Port)
	assert.Equal(t, "guest", cfg.Metrics.Namespace)
}
