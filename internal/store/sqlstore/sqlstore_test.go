package sqlstore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/comfygw/gateway/internal/domain"
)

// setupTestStore starts a disposable PostgreSQL container, applies the
// gateway's own migrations against it, and returns a connected Store.
// Skipped unless INTEGRATION=1, mirroring _teacher_ref/postgres/testutils.go.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("set INTEGRATION=1 to run sqlstore integration tests")
	}
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("gateway_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, &Config{
		DSN:            connStr,
		MaxConnections: 5,
		ConnectTimeout: 30 * time.Second,
		MigrationsPath: "file://migrations",
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestSQLStoreWorkerRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	w := domain.WorkerInfo{WorkerID: "w1", BaseURL: "http://w1:8188", DisplayName: "Worker One", Weight: 2, Enabled: true}
	require.NoError(t, s.UpsertWorker(ctx, w))

	got, ok, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://w1:8188", got.BaseURL)
	assert.Equal(t, 2, got.Weight)

	require.NoError(t, s.DeleteWorker(ctx, "w1"))
	_, ok, err = s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStoreQueueOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	a := domain.QueuedJob{GatewayJobID: "a", Prompt: json.RawMessage(`{}`), Priority: 0, CreatedAt: now}
	b := domain.QueuedJob{GatewayJobID: "b", Prompt: json.RawMessage(`{}`), Priority: 10, CreatedAt: now.Add(time.Millisecond)}
	c := domain.QueuedJob{GatewayJobID: "c", Prompt: json.RawMessage(`{}`), Priority: 10, CreatedAt: now.Add(2 * time.Millisecond)}

	require.NoError(t, s.Enqueue(ctx, a))
	require.NoError(t, s.Enqueue(ctx, b))
	require.NoError(t, s.Enqueue(ctx, c))

	first, ok, err := s.PopHighest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", first.GatewayJobID)

	second, ok, err := s.PopHighest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", second.GatewayJobID)

	third, ok, err := s.PopHighest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", third.GatewayJobID)

	_, ok, err = s.PopHighest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStoreHistoryLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "task-1", 5))
	require.NoError(t, s.MarkSubmitted(ctx, "task-1", "prompt-1", "w1", time.Now().Unix()))
	require.NoError(t, s.UpdateProgress(ctx, "task-1", 40))
	require.NoError(t, s.UpdateProgress(ctx, "task-1", 10)) // regressive, ignored

	rec, ok, err := s.GetByTaskID(ctx, "task-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40, rec.Progress)
	assert.Equal(t, domain.StatusRunning, rec.Status)

	require.NoError(t, s.MarkCompleted(ctx, "task-1", []byte(`{"ok":true}`), time.Now().Unix()))
	require.NoError(t, s.MarkFailed(ctx, "task-1", "should not apply", time.Now().Unix()))

	rec, ok, err = s.GetByTaskID(ctx, "task-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDone, rec.Status)
	assert.Equal(t, 100, rec.Progress)

	byPrompt, ok, err := s.GetByPromptID(ctx, "prompt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "task-1", byPrompt.TaskID)
}

func TestSQLStoreSettingsRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "global_worker_password")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "global_worker_password", "hunter2"))
	v, ok, err := s.Get(ctx, "global_worker_password")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hunter2", v)
}
