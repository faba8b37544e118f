package gwconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.UsesDatabase())
	assert.False(t, cfg.UsesCache())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GATEWAY_DB_DSN", "postgres://x")
	t.Setenv("GATEWAY_DISPATCHER_BATCH", "5")
	t.Setenv("GATEWAY_QUEUE_CACHE_TTL_SECONDS", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, 5, cfg.Worker.DispatcherBatch)
	assert.Equal(t, "postgres://x", cfg.Database.DSN)
}

func TestValidateRejectsBadBatch(t *testing.T) {
	cfg := Default()
	cfg.Worker.DispatcherBatch = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/gateway.json")
	require.NoError(t, err)
	assert.Equal(t, Default().Worker.DispatcherBatch, cfg.Worker.DispatcherBatch)
}
