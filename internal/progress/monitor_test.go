package progress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/store/memstore"
	"github.com/comfygw/gateway/internal/workerclient"
)

var upgrader = websocket.Upgrader{}

func wsWorkerServer(t *testing.T, send func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/queue" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"queue_running":[],"queue_pending":[]}`))
			return
		}
		if r.URL.Path == "/ws" {
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			defer conn.Close()
			send(conn)
			return
		}
	}))
}

func TestMonitorHandlesExecutionLifecycle(t *testing.T) {
	done := make(chan struct{})
	srv := wsWorkerServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "execution_start", "data": map[string]any{"prompt_id": "prompt-1"}})
		_ = conn.WriteJSON(map[string]any{"type": "progress", "data": map[string]any{"value": 5, "max": 10}})
		_ = conn.WriteJSON(map[string]any{"type": "executing", "data": map[string]any{"node": nil}})
		close(done)
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	w, err := reg.Add(ctx, srv.URL, "w1", 1, "", "")
	require.NoError(t, err)
	reg.UpdateLoad(w.WorkerID, 0, 0, true)

	require.NoError(t, mem.Create(ctx, "task-1", 1))
	require.NoError(t, mem.MarkSubmitted(ctx, "task-1", "prompt-1", w.WorkerID, time.Now().Unix()))

	client := workerclient.New(time.Second)
	mon := New(mem, reg, client, time.Hour)
	go mon.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages to be sent")
	}

	require.Eventually(t, func() bool {
		rec, ok, err := mem.GetByTaskID(ctx, "task-1")
		return err == nil && ok && rec.Progress == 50
	}, time.Second, 10*time.Millisecond)

	rec, ok, err := mem.GetByTaskID(ctx, "task-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusRunning, rec.Status)

	p, ok := mon.GetTaskProgress("prompt-1")
	require.True(t, ok)
	assert.Equal(t, 50, p)
}

func TestMonitorMarksFailedOnExecutionError(t *testing.T) {
	done := make(chan struct{})
	srv := wsWorkerServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"type": "execution_start", "data": map[string]any{"prompt_id": "prompt-2"}})
		_ = conn.WriteJSON(map[string]any{"type": "execution_error", "data": map[string]any{"exception_message": "boom"}})
		close(done)
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	w, err := reg.Add(ctx, srv.URL, "w1", 1, "", "")
	require.NoError(t, err)
	reg.UpdateLoad(w.WorkerID, 0, 0, true)

	require.NoError(t, mem.Create(ctx, "task-2", 1))
	require.NoError(t, mem.MarkSubmitted(ctx, "task-2", "prompt-2", w.WorkerID, time.Now().Unix()))

	client := workerclient.New(time.Second)
	mon := New(mem, reg, client, time.Hour)
	go mon.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages to be sent")
	}

	require.Eventually(t, func() bool {
		rec, ok, err := mem.GetByTaskID(ctx, "task-2")
		return err == nil && ok && rec.Status == domain.StatusFailed
	}, time.Second, 10*time.Millisecond)

	rec, _, _ := mem.GetByTaskID(ctx, "task-2")
	assert.Equal(t, "boom", rec.ErrorMessage)
}

func TestGetTaskProgressAbsentWhenUnknown(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	client := workerclient.New(time.Second)
	mon := New(mem, reg, client, time.Hour)

	_, ok := mon.GetTaskProgress("unknown")
	assert.False(t, ok)
}
