// Package domain holds the core data types shared across the gateway:
// workers, queued jobs, mappings, and task history records, as specified
// in SPEC_FULL.md section 4.
package domain

import (
	"encoding/json"
	"time"
)

// Status is a TaskRecord's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

// Terminal reports whether the status is one that no longer advances.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// WorkerInfo is the canonical record of one fleet worker.
type WorkerInfo struct {
	WorkerID      string
	BaseURL       string
	DisplayName   string
	Weight        int
	Enabled       bool
	AuthUsername  string
	AuthPassword  string
	QueueRunning  int
	QueuePending  int
	Healthy       bool
	CacheTimestamp time.Time
}

// LoadScore is running+pending at the last probe.
func (w WorkerInfo) LoadScore() int { return w.QueueRunning + w.QueuePending }

// CacheValid reports whether the cached load figures are still fresh
// relative to now, given ttl.
func (w WorkerInfo) CacheValid(now time.Time, ttl time.Duration) bool {
	if w.CacheTimestamp.IsZero() {
		return false
	}
	return now.Sub(w.CacheTimestamp) <= ttl
}

// QueuedJob is a priority-admission-queue entry awaiting dispatch.
type QueuedJob struct {
	GatewayJobID string
	Prompt       json.RawMessage
	ClientID     string
	Priority     int
	CreatedAt    time.Time
}

// GatewayJobMapping is the gateway_job_id -> (prompt_id, worker_id) record
// written once a queued job is successfully submitted.
type GatewayJobMapping struct {
	GatewayJobID string
	PromptID     string
	WorkerID     string
}

// TaskRecord is one row of task history, per SPEC_FULL.md section 4.
type TaskRecord struct {
	TaskID       string
	PromptID     string
	WorkerID     string
	Priority     int
	Status       Status
	Progress     int
	ErrorMessage string
	SubmittedAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ResultBlob   json.RawMessage
}
