package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gwerrors"
	"github.com/comfygw/gateway/internal/store/memstore"
)

func TestAddNormalizesURLAndPersists(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := New(ctx, mem, time.Second, "global-user", "global-pass")
	require.NoError(t, err)

	w, err := reg.Add(ctx, "http://worker1:8188/", "Worker One", 3, "", "")
	require.NoError(t, err)
	assert.Equal(t, "http://worker1:8188", w.BaseURL)
	assert.Equal(t, 3, w.Weight)
	assert.True(t, w.Enabled)

	persisted, ok, err := mem.GetWorker(ctx, w.WorkerID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w.BaseURL, persisted.BaseURL)
}

func TestUpdateUnknownWorkerReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, memstore.New(), time.Second, "", "")
	require.NoError(t, err)

	_, err = reg.Update(ctx, "missing", func(w *domain.WorkerInfo) {})
	assert.ErrorIs(t, err, gwerrors.ErrNotFound)
}

func TestRemoveLeavesMappingsUntouched(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)

	w, err := reg.Add(ctx, "http://w1", "", 1, "", "")
	require.NoError(t, err)
	require.NoError(t, mem.SetPromptWorker(ctx, "prompt-1", w.WorkerID))

	require.NoError(t, reg.Remove(ctx, w.WorkerID))
	_, ok := reg.Get(w.WorkerID)
	assert.False(t, ok)

	mapped, ok, err := mem.GetPromptWorker(ctx, "prompt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w.WorkerID, mapped)
}

func TestAuthFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, memstore.New(), time.Second, "global-user", "global-pass")
	require.NoError(t, err)

	withCreds, err := reg.Add(ctx, "http://w1", "", 1, "per-worker-user", "per-worker-pass")
	require.NoError(t, err)
	withoutCreds, err := reg.Add(ctx, "http://w2", "", 1, "", "")
	require.NoError(t, err)

	u, p := reg.Auth(withCreds.WorkerID)
	assert.Equal(t, "per-worker-user", u)
	assert.Equal(t, "per-worker-pass", p)

	u, p = reg.Auth(withoutCreds.WorkerID)
	assert.Equal(t, "global-user", u)
	assert.Equal(t, "global-pass", p)
}

func TestUpdateLoadRefreshesCacheTimestamp(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, memstore.New(), 50*time.Millisecond, "", "")
	require.NoError(t, err)

	w, err := reg.Add(ctx, "http://w1", "", 1, "", "")
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, reg.CacheValid(w, now), "freshly added worker has no cache yet")

	reg.UpdateLoad(w.WorkerID, 2, 3, true)
	refreshed, ok := reg.Get(w.WorkerID)
	require.True(t, ok)
	assert.Equal(t, 5, refreshed.LoadScore())
	assert.True(t, reg.CacheValid(refreshed, time.Now()))

	assert.False(t, reg.CacheValid(refreshed, time.Now().Add(100*time.Millisecond)))
}
