package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/store/memstore"
	"github.com/comfygw/gateway/internal/workerclient"
)

func TestProbeOnceMarksHealthyAndUnhealthy(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	healthyWorker, err := reg.Add(ctx, up.URL, "up", 1, "", "")
	require.NoError(t, err)
	deadWorker, err := reg.Add(ctx, "http://127.0.0.1:1", "down", 1, "", "")
	require.NoError(t, err)

	client := workerclient.New(time.Second)
	prober := New(reg, client, time.Minute, 500*time.Millisecond)
	prober.ProbeOnce(ctx)

	h, ok := reg.Get(healthyWorker.WorkerID)
	require.True(t, ok)
	assert.True(t, h.Healthy)

	d, ok := reg.Get(deadWorker.WorkerID)
	require.True(t, ok)
	assert.False(t, d.Healthy)
}

func TestProbeOnceSkipsDisabledWorkers(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)

	w, err := reg.Add(ctx, "http://127.0.0.1:1", "disabled", 1, "", "")
	require.NoError(t, err)
	_, err = reg.Update(ctx, w.WorkerID, func(info *domain.WorkerInfo) { info.Enabled = false })
	require.NoError(t, err)

	client := workerclient.New(time.Second)
	prober := New(reg, client, time.Minute, 200*time.Millisecond)
	prober.ProbeOnce(ctx)

	got, ok := reg.Get(w.WorkerID)
	require.True(t, ok)
	assert.False(t, got.Healthy, "never probed, so still the zero-value false")
}
