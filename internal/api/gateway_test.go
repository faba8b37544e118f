package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gwerrors"
	"github.com/comfygw/gateway/internal/history"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/selector"
	"github.com/comfygw/gateway/internal/settings"
	"github.com/comfygw/gateway/internal/store/memstore"
	"github.com/comfygw/gateway/internal/workerclient"
)

func newTestGateway(t *testing.T, srv *httptest.Server) (*Gateway, *memstore.Store, *registry.Registry) {
	t.Helper()
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	if srv != nil {
		_, err = reg.Add(ctx, srv.URL, "w1", 1, "", "")
		require.NoError(t, err)
	}
	client := workerclient.New(time.Second)
	sel := selector.New(reg, client, time.Second)
	historyS := history.New(mem, reg, client, nil, 5)
	settingsS, err := settings.New(ctx, mem, reg)
	require.NoError(t, err)

	return New(reg, mem, mem, historyS, client, sel, settingsS), mem, reg
}

func idleQueueAndPromptServer(t *testing.T, promptID string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/queue":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"queue_running":[],"queue_pending":[]}`))
		case "/prompt":
			_ = json.NewEncoder(w).Encode(map[string]any{"prompt_id": promptID, "number": 7})
		case "/system_stats":
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func TestSubmitDirectRecordsMappingAndReturnsWorkerBody(t *testing.T) {
	srv := idleQueueAndPromptServer(t, "prompt-1")
	defer srv.Close()
	gw, mem, _ := newTestGateway(t, srv)
	ctx := context.Background()

	result, err := gw.Submit(ctx, json.RawMessage(`{}`), "client-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "prompt-1", result.PromptID)
	assert.Equal(t, 7, result.Number)

	workerID, ok, err := mem.GetPromptWorker(ctx, "prompt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, workerID)
}

func TestSubmitDirectNoCapacity(t *testing.T) {
	gw, _, _ := newTestGateway(t, nil)
	_, err := gw.Submit(context.Background(), json.RawMessage(`{}`), "client-1", nil)
	assert.ErrorIs(t, err, gwerrors.ErrNoCapacity)
}

func TestSubmitQueuedReturnsGatewayJobID(t *testing.T) {
	gw, mem, _ := newTestGateway(t, nil)
	ctx := context.Background()
	priority := 5

	result, err := gw.Submit(ctx, json.RawMessage(`{}`), "client-1", &priority)
	require.NoError(t, err)
	assert.NotEmpty(t, result.GatewayJobID)
	assert.Equal(t, "queued", result.Status)

	job, ok, err := mem.Peek(ctx, result.GatewayJobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, job.Priority)
}

func TestGatewayStatusReflectsQueuedThenPendingAfterPop(t *testing.T) {
	gw, mem, _ := newTestGateway(t, nil)
	ctx := context.Background()
	priority := 1

	result, err := gw.Submit(ctx, json.RawMessage(`{}`), "client-1", &priority)
	require.NoError(t, err)

	status, err := gw.GatewayStatus(ctx, result.GatewayJobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, status.Status)

	_, _, err = mem.PopHighest(ctx)
	require.NoError(t, err)

	status, err = gw.GatewayStatus(ctx, result.GatewayJobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status.Status)
}

func TestStatusReturnsUnknownForUnseenPrompt(t *testing.T) {
	gw, _, _ := newTestGateway(t, nil)
	status, err := gw.Status(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, status.Status)
}

func TestAggregatedQueueReturnsPerWorkerCountsAndPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue_running":["p1"],"queue_pending":["p2","p3"]}`))
	}))
	defer srv.Close()
	gw, _, _ := newTestGateway(t, srv)

	agg := gw.AggregatedQueue(context.Background())
	require.Len(t, agg.Workers, 1)
	assert.Equal(t, 1, agg.Workers[0].Running)
	assert.Equal(t, 2, agg.Workers[0].Pending)
	require.Len(t, agg.Pending, 2)
	assert.Equal(t, 1, agg.Pending[0].Position)
	assert.Equal(t, 2, agg.Pending[1].Position)
}

func TestRegisterWorkerRefusesOnFailedHealthProbe(t *testing.T) {
	gw, _, _ := newTestGateway(t, nil)
	_, err := gw.RegisterWorker(context.Background(), "http://127.0.0.1:1", "dead", 1, "", "", false)
	assert.Error(t, err)
}

func TestRegisterWorkerSkipsHealthWhenRequested(t *testing.T) {
	gw, _, reg := newTestGateway(t, nil)
	w, err := gw.RegisterWorker(context.Background(), "http://127.0.0.1:1", "unreachable", 1, "", "", true)
	require.NoError(t, err)
	_, ok := reg.Get(w.WorkerID)
	assert.True(t, ok)
}

func TestDeleteWorkerLeavesMappingsIntact(t *testing.T) {
	gw, mem, reg := newTestGateway(t, nil)
	ctx := context.Background()
	w, err := reg.Add(ctx, "http://w1", "", 1, "", "")
	require.NoError(t, err)
	require.NoError(t, mem.SetPromptWorker(ctx, "prompt-1", w.WorkerID))

	require.NoError(t, gw.DeleteWorker(ctx, w.WorkerID))

	mapped, ok, err := mem.GetPromptWorker(ctx, "prompt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w.WorkerID, mapped)
}

func TestGlobalWorkerAuthRoundTripThroughGateway(t *testing.T) {
	gw, _, _ := newTestGateway(t, nil)
	ctx := context.Background()

	auth, err := gw.GetGlobalWorkerAuth(ctx)
	require.NoError(t, err)
	assert.False(t, auth.HasPassword)

	require.NoError(t, gw.SetGlobalWorkerAuth(ctx, "op", "secret"))
	auth, err = gw.GetGlobalWorkerAuth(ctx)
	require.NoError(t, err)
	assert.True(t, auth.HasPassword)
	assert.Equal(t, "op", auth.Username)
}

func TestSubmitTemplateReturnsNotImplementedByDefault(t *testing.T) {
	gw, _, _ := newTestGateway(t, nil)
	_, err := gw.SubmitTemplate(context.Background(), "my-template", json.RawMessage(`{}`), "client-1", nil)
	assert.ErrorIs(t, err, gwerrors.ErrNotFound)
}
