package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/store/memstore"
)

func TestGlobalWorkerAuthNeverExposesPassword(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	svc, err := New(ctx, mem, reg)
	require.NoError(t, err)

	auth, err := svc.GetGlobalWorkerAuth(ctx)
	require.NoError(t, err)
	assert.False(t, auth.HasPassword)

	require.NoError(t, svc.SetGlobalWorkerAuth(ctx, "operator", "hunter2"))

	auth, err = svc.GetGlobalWorkerAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "operator", auth.Username)
	assert.True(t, auth.HasPassword)
}

func TestSetGlobalWorkerAuthUpdatesRegistryFallback(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	svc, err := New(ctx, mem, reg)
	require.NoError(t, err)

	w, err := reg.Add(ctx, "http://w1", "", 1, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetGlobalWorkerAuth(ctx, "operator", "hunter2"))

	u, p := reg.Auth(w.WorkerID)
	assert.Equal(t, "operator", u)
	assert.Equal(t, "hunter2", p)
}

func TestNewPrimesRegistryFromExistingSettings(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	require.NoError(t, mem.Set(ctx, "global_worker_username", "preexisting"))
	require.NoError(t, mem.Set(ctx, "global_worker_password", "preexisting-pass"))

	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	_, err = New(ctx, mem, reg)
	require.NoError(t, err)

	w, err := reg.Add(ctx, "http://w1", "", 1, "", "")
	require.NoError(t, err)
	u, p := reg.Auth(w.WorkerID)
	assert.Equal(t, "preexisting", u)
	assert.Equal(t, "preexisting-pass", p)
}
