package history

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

type prefixRewriter struct{ prefix string }

func (p prefixRewriter) Rewrite(rec *domain.TaskRecord) {
	if rec.ResultBlob != nil {
		rec.ResultBlob = append([]byte(p.prefix), rec.ResultBlob...)
	}
}

func TestListReconcilesNonTerminalRecordAsDone(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/history/prompt-1" {
			_, _ = w.Write([]byte(`{"prompt-1":{"outputs":{}}}`))
			return
		}
	}))
	defer srv.Close()

	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	worker, err := reg.Add(ctx, srv.URL, "w1", 1, "", "")
	require.NoError(t, err)

	require.NoError(t, mem.Create(ctx, "task-1", 1))
	require.NoError(t, mem.MarkSubmitted(ctx, "task-1", "prompt-1", worker.WorkerID, time.Now().Unix()))

	client := workerclient.New(time.Second)
	svc := New(mem, reg, client, nil, 5)

	recs, err := svc.List(ctx, 10, 0, "", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusDone, recs[0].Status)
}

func TestListReconcilesAsFailedWhenNotFoundAnywhere(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/history/prompt-2":
			_, _ = w.Write([]byte(`{}`))
		case "/queue":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"queue_running":[],"queue_pending":[]}`))
		}
	}))
	defer srv.Close()

	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	worker, err := reg.Add(ctx, srv.URL, "w1", 1, "", "")
	require.NoError(t, err)

	require.NoError(t, mem.Create(ctx, "task-2", 1))
	require.NoError(t, mem.MarkSubmitted(ctx, "task-2", "prompt-2", worker.WorkerID, time.Now().Unix()))

	client := workerclient.New(time.Second)
	svc := New(mem, reg, client, nil, 5)

	recs, err := svc.List(ctx, 10, 0, "", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusFailed, recs[0].Status)
}

func TestStartScheduledSweepReconcilesWithoutAnyListCall(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/history/prompt-9" {
			_, _ = w.Write([]byte(`{"prompt-9":{"outputs":{}}}`))
		}
	}))
	defer srv.Close()

	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	worker, err := reg.Add(ctx, srv.URL, "w1", 1, "", "")
	require.NoError(t, err)

	require.NoError(t, mem.Create(ctx, "task-9", 1))
	require.NoError(t, mem.MarkSubmitted(ctx, "task-9", "prompt-9", worker.WorkerID, time.Now().Unix()))

	client := workerclient.New(time.Second)
	svc := New(mem, reg, client, nil, 5)

	sched, err := svc.StartScheduledSweep(ctx, "* * * * * *")
	require.NoError(t, err)
	defer sched.Stop()

	require.Eventually(t, func() bool {
		rec, ok, err := mem.GetByTaskID(ctx, "task-9")
		return err == nil && ok && rec.Status == domain.StatusDone
	}, 3*time.Second, 50*time.Millisecond)
}

func TestGetByTaskIDAppliesURLRewriter(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	reg, err := registry.New(ctx, mem, time.Second, "", "")
	require.NoError(t, err)
	client := workerclient.New(time.Second)
	svc := New(mem, reg, client, prefixRewriter{prefix: "gateway://"}, 5)

	require.NoError(t, mem.Create(ctx, "task-3", 1))
	require.NoError(t, mem.MarkCompleted(ctx, "task-3", []byte("worker://out.png"), time.Now().Unix()))

	rec, ok, err := svc.GetByTaskID(ctx, "task-3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gateway://worker://out.png", string(rec.ResultBlob))
}
