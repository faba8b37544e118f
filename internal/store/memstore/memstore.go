// Package memstore is the in-process persistence backend: no external
// dependency, state is lost on restart. It backs the "else" branch of
// SPEC_FULL.md section 2.1 and is also the fallback target the cache
// backend degrades to on any Redis error.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comfygw/gateway/internal/domain"
)

// Store implements every persistence port entirely in memory.
type Store struct {
	mu sync.Mutex

	workers map[string]domain.WorkerInfo

	promptWorker map[string]string
	gatewayJobs  map[string]domain.GatewayJobMapping

	pending []domain.QueuedJob

	history map[string]domain.TaskRecord
	// promptIndex lets GetByPromptID and UpsertByPromptID find the task_id
	// that owns a given prompt_id, honoring the "first upsert wins" policy
	// of SPEC_FULL.md section 11.
	promptIndex map[string]string

	settings map[string]string
}

// New creates an empty in-process store.
func New() *Store {
	return &Store{
		workers:      make(map[string]domain.WorkerInfo),
		promptWorker: make(map[string]string),
		gatewayJobs:  make(map[string]domain.GatewayJobMapping),
		history:      make(map[string]domain.TaskRecord),
		promptIndex:  make(map[string]string),
		settings:     make(map[string]string),
	}
}

// --- WorkerStore ---

func (s *Store) ListWorkers(ctx context.Context) ([]domain.WorkerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WorkerInfo, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

func (s *Store) GetWorker(ctx context.Context, workerID string) (domain.WorkerInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[workerID]
	return w, ok, nil
}

func (s *Store) UpsertWorker(ctx context.Context, w domain.WorkerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[w.WorkerID] = w
	return nil
}

func (s *Store) DeleteWorker(ctx context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workers, workerID)
	return nil
}

// --- MappingStore ---

func (s *Store) SetPromptWorker(ctx context.Context, promptID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptWorker[promptID] = workerID
	return nil
}

func (s *Store) GetPromptWorker(ctx context.Context, promptID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.promptWorker[promptID]
	return w, ok, nil
}

func (s *Store) SetGatewayJob(ctx context.Context, gatewayJobID, promptID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gatewayJobs[gatewayJobID] = domain.GatewayJobMapping{GatewayJobID: gatewayJobID, PromptID: promptID, WorkerID: workerID}
	return nil
}

func (s *Store) GetGatewayJob(ctx context.Context, gatewayJobID string) (domain.GatewayJobMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.gatewayJobs[gatewayJobID]
	return m, ok, nil
}

// --- PendingQueueStore ---

// queueLess implements the (priority desc, created_at asc) ordering
// contract of SPEC_FULL.md section 4.4, with a lexicographic
// gateway_job_id tiebreak for identical timestamps.
func queueLess(a, b domain.QueuedJob) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.GatewayJobID < b.GatewayJobID
}

func (s *Store) Enqueue(ctx context.Context, job domain.QueuedJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, job)
	sort.SliceStable(s.pending, func(i, j int) bool { return queueLess(s.pending[i], s.pending[j]) })
	return nil
}

func (s *Store) PopHighest(ctx context.Context) (domain.QueuedJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return domain.QueuedJob{}, false, nil
	}
	top := s.pending[0]
	s.pending = s.pending[1:]
	return top, true, nil
}

func (s *Store) Peek(ctx context.Context, gatewayJobID string) (domain.QueuedJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.pending {
		if j.GatewayJobID == gatewayJobID {
			return j, true, nil
		}
	}
	return domain.QueuedJob{}, false, nil
}

func (s *Store) Remove(ctx context.Context, gatewayJobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.pending {
		if j.GatewayJobID == gatewayJobID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ReEnqueue(ctx context.Context, job domain.QueuedJob) error {
	return s.Enqueue(ctx, job)
}

// --- HistoryStore ---

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (s *Store) Create(ctx context.Context, taskID string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.history[taskID]; exists {
		return nil
	}
	s.history[taskID] = domain.TaskRecord{
		TaskID:      taskID,
		Priority:    priority,
		Status:      domain.StatusPending,
		SubmittedAt: time.Now(),
	}
	return nil
}

func (s *Store) MarkSubmitted(ctx context.Context, taskID, promptID, workerID string, startedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.history[taskID]
	rec.TaskID = taskID
	rec.PromptID = promptID
	rec.WorkerID = workerID
	if !rec.Status.Terminal() {
		rec.Status = domain.StatusSubmitted
	}
	t := time.Unix(startedAt, 0)
	rec.StartedAt = &t
	s.history[taskID] = rec
	if promptID != "" {
		if _, taken := s.promptIndex[promptID]; !taken {
			s.promptIndex[promptID] = taskID
		}
	}
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, taskID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[taskID]
	if !ok || rec.Status.Terminal() {
		return nil
	}
	p := clampProgress(progress)
	if p < rec.Progress {
		return nil
	}
	rec.Progress = p
	if rec.Status != domain.StatusRunning {
		rec.Status = domain.StatusRunning
	}
	s.history[taskID] = rec
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, taskID string, resultBlob []byte, completedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[taskID]
	if !ok || rec.Status.Terminal() {
		return nil
	}
	rec.Status = domain.StatusDone
	rec.Progress = 100
	rec.ResultBlob = resultBlob
	t := time.Unix(completedAt, 0)
	rec.CompletedAt = &t
	s.history[taskID] = rec
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, taskID, errorMessage string, completedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[taskID]
	if !ok || rec.Status.Terminal() {
		return nil
	}
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = errorMessage
	t := time.Unix(completedAt, 0)
	rec.CompletedAt = &t
	s.history[taskID] = rec
	return nil
}

func (s *Store) UpsertByPromptID(ctx context.Context, promptID, workerID string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if taskID, ok := s.promptIndex[promptID]; ok {
		rec := s.history[taskID]
		rec.WorkerID = workerID
		s.history[taskID] = rec
		return nil
	}
	s.promptIndex[promptID] = promptID
	s.history[promptID] = domain.TaskRecord{
		TaskID:      promptID,
		PromptID:    promptID,
		WorkerID:    workerID,
		Priority:    priority,
		Status:      domain.StatusRunning,
		SubmittedAt: time.Now(),
	}
	return nil
}

func (s *Store) Sync(ctx context.Context, rec domain.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taskID := rec.TaskID
	if taskID == "" && rec.PromptID != "" {
		if existing, ok := s.promptIndex[rec.PromptID]; ok {
			taskID = existing
		} else {
			taskID = rec.PromptID
		}
	}
	if taskID == "" {
		return nil
	}

	existing, ok := s.history[taskID]
	if ok && existing.Status.Terminal() {
		return nil
	}
	if !ok {
		existing = domain.TaskRecord{TaskID: taskID, SubmittedAt: time.Now()}
	}
	if rec.PromptID != "" {
		existing.PromptID = rec.PromptID
		if _, taken := s.promptIndex[rec.PromptID]; !taken {
			s.promptIndex[rec.PromptID] = taskID
		}
	}
	if rec.WorkerID != "" {
		existing.WorkerID = rec.WorkerID
	}
	if rec.Status != "" {
		existing.Status = rec.Status
	}
	if rec.Progress > existing.Progress {
		existing.Progress = clampProgress(rec.Progress)
	}
	if rec.ErrorMessage != "" {
		existing.ErrorMessage = rec.ErrorMessage
	}
	if rec.ResultBlob != nil {
		existing.ResultBlob = rec.ResultBlob
	}
	if rec.StartedAt != nil {
		existing.StartedAt = rec.StartedAt
	}
	if rec.CompletedAt != nil {
		existing.CompletedAt = rec.CompletedAt
	}
	s.history[taskID] = existing
	return nil
}

func (s *Store) List(ctx context.Context, limit, offset int, workerID, status string) ([]domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TaskRecord, 0, len(s.history))
	for _, rec := range s.history {
		if workerID != "" && rec.WorkerID != workerID {
			continue
		}
		if status != "" && string(rec.Status) != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if offset > len(out) {
		return []domain.TaskRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetByTaskID(ctx context.Context, taskID string) (domain.TaskRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[taskID]
	return rec, ok, nil
}

func (s *Store) GetByPromptID(ctx context.Context, promptID string) (domain.TaskRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taskID, ok := s.promptIndex[promptID]
	if !ok {
		return domain.TaskRecord{}, false, nil
	}
	rec, ok := s.history[taskID]
	return rec, ok, nil
}

// --- SettingsStore ---

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}
