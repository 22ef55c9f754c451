package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "test")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxConcurrentSearches)
	assert.Equal(t, 64, cfg.GlobalConcurrencyCap)
	assert.Equal(t, 3, cfg.MaxFeedbackRetries)
	assert.Equal(t, 300.0, cfg.WorkflowTimeout.Seconds())
	assert.Equal(t, 5, cfg.CircuitBreakerFailureThreshold)
	assert.Equal(t, 60.0, cfg.CircuitBreakerResetTimeout.Seconds())
	assert.Equal(t, 10, cfg.MaxConsumers)
	assert.Equal(t, 60.0, cfg.Redis.DedupTTL.Seconds())
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoadProviderDefaults(t *testing.T) {
	cfg, err := Load("", "test")
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.Registry.Timeout.Seconds())
	assert.Equal(t, 60.0, cfg.SearchDeep.Timeout.Seconds())
	assert.Equal(t, "openai/gpt-4o-mini", cfg.OpenRouter.Model)
}
