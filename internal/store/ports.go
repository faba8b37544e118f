// Package store defines the narrow persistence ports of SPEC_FULL.md
// section 5 (Persistence ports) and is implemented by three interchangeable
// backends: memstore (in-process), cachestore (Redis-backed, falling back
// to memstore on error; it implements every port except HistoryStore), and
// sqlstore (PostgreSQL via pgx).
package store

import (
	"context"

	"github.com/comfygw/gateway/internal/domain"
)

// WorkerStore persists the worker registry's canonical rows.
type WorkerStore interface {
	ListWorkers(ctx context.Context) ([]domain.WorkerInfo, error)
	GetWorker(ctx context.Context, workerID string) (domain.WorkerInfo, bool, error)
	UpsertWorker(ctx context.Context, w domain.WorkerInfo) error
	DeleteWorker(ctx context.Context, workerID string) error
}

// MappingStore persists the prompt_id<->worker_id and
// gateway_job_id<->(prompt_id,worker_id) relations.
type MappingStore interface {
	SetPromptWorker(ctx context.Context, promptID, workerID string) error
	GetPromptWorker(ctx context.Context, promptID string) (string, bool, error)
	SetGatewayJob(ctx context.Context, gatewayJobID, promptID, workerID string) error
	GetGatewayJob(ctx context.Context, gatewayJobID string) (domain.GatewayJobMapping, bool, error)
}

// PendingQueueStore is the persistent priority-ordered admission queue.
type PendingQueueStore interface {
	Enqueue(ctx context.Context, job domain.QueuedJob) error
	PopHighest(ctx context.Context) (domain.QueuedJob, bool, error)
	Peek(ctx context.Context, gatewayJobID string) (domain.QueuedJob, bool, error)
	Remove(ctx context.Context, gatewayJobID string) (bool, error)
	ReEnqueue(ctx context.Context, job domain.QueuedJob) error
}

// HistoryStore persists task_history rows.
type HistoryStore interface {
	Create(ctx context.Context, taskID string, priority int) error
	MarkSubmitted(ctx context.Context, taskID, promptID, workerID string, startedAt int64) error
	UpdateProgress(ctx context.Context, taskID string, progress int) error
	MarkCompleted(ctx context.Context, taskID string, resultBlob []byte, completedAt int64) error
	MarkFailed(ctx context.Context, taskID, errorMessage string, completedAt int64) error
	UpsertByPromptID(ctx context.Context, promptID, workerID string, priority int) error
	Sync(ctx context.Context, rec domain.TaskRecord) error
	List(ctx context.Context, limit, offset int, workerID, status string) ([]domain.TaskRecord, error)
	GetByTaskID(ctx context.Context, taskID string) (domain.TaskRecord, bool, error)
	GetByPromptID(ctx context.Context, promptID string) (domain.TaskRecord, bool, error)
}

// SettingsStore persists process-wide key/value settings.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Backends bundles the five ports a single configured persistence backend
// provides; the registry, dispatcher, history, and settings packages each
// take the one port they need rather than this whole bundle.
type Backends struct {
	Workers  WorkerStore
	Mappings MappingStore
	Queue    PendingQueueStore
	History  HistoryStore
	Settings SettingsStore
}
