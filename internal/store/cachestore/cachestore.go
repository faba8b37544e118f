// Package cachestore is the remote key-value persistence backend backed by
// Redis, per SPEC_FULL.md section 2.1 / spec.md section 4.1: "durable-ish,
// string/hash values, best-effort with short connect/read timeouts; on any
// error the call silently falls back to in-process."
//
// Every operation is therefore a decorator: try Redis under a short
// deadline, and on any error (including connect-refused and timeout) fall
// back to the wrapped in-process memstore.Store without surfacing the
// error to the caller.
package cachestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gatewaylog"
	"github.com/comfygw/gateway/internal/store/memstore"
)

const (
	workersKey      = "gateway:workers"
	pendingQueueKey = "gateway:pending_queue"
	taskWorkerPfx   = "gateway:task:"
	gatewayJobPfx   = "gateway:job:"
	settingsPfx     = "gateway:settings:"
)

// Store wraps a Redis client with the same-shaped in-process fallback.
type Store struct {
	rdb      *redis.Client
	fallback *memstore.Store
	timeout  time.Duration
}

// New connects (lazily; redis.NewClient never dials eagerly) to the given
// Redis URL and returns a Store that degrades to an in-process memstore on
// any error within timeout.
func New(url string, timeout time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	return &Store{
		rdb:      redis.NewClient(opts),
		fallback: memstore.New(),
		timeout:  timeout,
	}, nil
}

func (s *Store) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func (s *Store) warn(op string, err error) {
	gatewaylog.Default().Debug("cache backend fallback", map[string]interface{}{"op": op, "error": err.Error()})
}

// --- WorkerStore ---

type workerWire struct {
	WorkerID       string    `json:"worker_id"`
	BaseURL        string    `json:"base_url"`
	DisplayName    string    `json:"display_name"`
	Weight         int       `json:"weight"`
	Enabled        bool      `json:"enabled"`
	AuthUsername   string    `json:"auth_username"`
	AuthPassword   string    `json:"auth_password"`
	QueueRunning   int       `json:"queue_running"`
	QueuePending   int       `json:"queue_pending"`
	Healthy        bool      `json:"healthy"`
	CacheTimestamp time.Time `json:"cache_timestamp"`
}

func toWire(w domain.WorkerInfo) workerWire {
	return workerWire{w.WorkerID, w.BaseURL, w.DisplayName, w.Weight, w.Enabled, w.AuthUsername, w.AuthPassword, w.QueueRunning, w.QueuePending, w.Healthy, w.CacheTimestamp}
}

func fromWire(w workerWire) domain.WorkerInfo {
	return domain.WorkerInfo{
		WorkerID: w.WorkerID, BaseURL: w.BaseURL, DisplayName: w.DisplayName, Weight: w.Weight, Enabled: w.Enabled,
		AuthUsername: w.AuthUsername, AuthPassword: w.AuthPassword, QueueRunning: w.QueueRunning, QueuePending: w.QueuePending,
		Healthy: w.Healthy, CacheTimestamp: w.CacheTimestamp,
	}
}

func (s *Store) readWorkers(ctx context.Context) ([]workerWire, error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	raw, err := s.rdb.Get(cctx, workersKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var arr []workerWire
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func (s *Store) writeWorkers(ctx context.Context, arr []workerWire) error {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	data, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	return s.rdb.Set(cctx, workersKey, data, 0).Err()
}

func (s *Store) ListWorkers(ctx context.Context) ([]domain.WorkerInfo, error) {
	arr, err := s.readWorkers(ctx)
	if err != nil {
		s.warn("ListWorkers", err)
		return s.fallback.ListWorkers(ctx)
	}
	out := make([]domain.WorkerInfo, 0, len(arr))
	for _, w := range arr {
		out = append(out, fromWire(w))
	}
	return out, nil
}

func (s *Store) GetWorker(ctx context.Context, workerID string) (domain.WorkerInfo, bool, error) {
	arr, err := s.readWorkers(ctx)
	if err != nil {
		s.warn("GetWorker", err)
		return s.fallback.GetWorker(ctx, workerID)
	}
	for _, w := range arr {
		if w.WorkerID == workerID {
			return fromWire(w), true, nil
		}
	}
	return domain.WorkerInfo{}, false, nil
}

func (s *Store) UpsertWorker(ctx context.Context, w domain.WorkerInfo) error {
	arr, err := s.readWorkers(ctx)
	if err != nil {
		s.warn("UpsertWorker", err)
		return s.fallback.UpsertWorker(ctx, w)
	}
	found := false
	for i, existing := range arr {
		if existing.WorkerID == w.WorkerID {
			arr[i] = toWire(w)
			found = true
			break
		}
	}
	if !found {
		arr = append(arr, toWire(w))
	}
	if err := s.writeWorkers(ctx, arr); err != nil {
		s.warn("UpsertWorker", err)
		return s.fallback.UpsertWorker(ctx, w)
	}
	return nil
}

func (s *Store) DeleteWorker(ctx context.Context, workerID string) error {
	arr, err := s.readWorkers(ctx)
	if err != nil {
		s.warn("DeleteWorker", err)
		return s.fallback.DeleteWorker(ctx, workerID)
	}
	out := arr[:0]
	for _, w := range arr {
		if w.WorkerID != workerID {
			out = append(out, w)
		}
	}
	if err := s.writeWorkers(ctx, out); err != nil {
		s.warn("DeleteWorker", err)
		return s.fallback.DeleteWorker(ctx, workerID)
	}
	return nil
}

// --- MappingStore ---

func (s *Store) SetPromptWorker(ctx context.Context, promptID, workerID string) error {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	if err := s.rdb.Set(cctx, taskWorkerPfx+promptID, workerID, 0).Err(); err != nil {
		s.warn("SetPromptWorker", err)
		return s.fallback.SetPromptWorker(ctx, promptID, workerID)
	}
	return nil
}

func (s *Store) GetPromptWorker(ctx context.Context, promptID string) (string, bool, error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.rdb.Get(cctx, taskWorkerPfx+promptID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		s.warn("GetPromptWorker", err)
		return s.fallback.GetPromptWorker(ctx, promptID)
	}
	return v, true, nil
}

func (s *Store) SetGatewayJob(ctx context.Context, gatewayJobID, promptID, workerID string) error {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	data, _ := json.Marshal(domain.GatewayJobMapping{GatewayJobID: gatewayJobID, PromptID: promptID, WorkerID: workerID})
	if err := s.rdb.Set(cctx, gatewayJobPfx+gatewayJobID, data, 0).Err(); err != nil {
		s.warn("SetGatewayJob", err)
		return s.fallback.SetGatewayJob(ctx, gatewayJobID, promptID, workerID)
	}
	return nil
}

func (s *Store) GetGatewayJob(ctx context.Context, gatewayJobID string) (domain.GatewayJobMapping, bool, error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	raw, err := s.rdb.Get(cctx, gatewayJobPfx+gatewayJobID).Result()
	if err == redis.Nil {
		return domain.GatewayJobMapping{}, false, nil
	}
	if err != nil {
		s.warn("GetGatewayJob", err)
		return s.fallback.GetGatewayJob(ctx, gatewayJobID)
	}
	var m domain.GatewayJobMapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		s.warn("GetGatewayJob", err)
		return s.fallback.GetGatewayJob(ctx, gatewayJobID)
	}
	return m, true, nil
}

// --- PendingQueueStore ---
// The whole ordered array is rewritten under Redis's own per-key atomicity;
// a coarse client-side lock is unnecessary since every op round-trips a
// single GET+SET pair, matching spec.md section 4.4's cache/in-process
// variant description.

func (s *Store) readQueue(ctx context.Context) ([]domain.QueuedJob, error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	raw, err := s.rdb.Get(cctx, pendingQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var arr []domain.QueuedJob
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func (s *Store) writeQueue(ctx context.Context, arr []domain.QueuedJob) error {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	data, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	return s.rdb.Set(cctx, pendingQueueKey, data, 0).Err()
}

func queueLess(a, b domain.QueuedJob) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.GatewayJobID < b.GatewayJobID
}

func sortQueue(arr []domain.QueuedJob) {
	for i := 1; i < len(arr); i++ {
		for j := i; j > 0 && queueLess(arr[j], arr[j-1]); j-- {
			arr[j], arr[j-1] = arr[j-1], arr[j]
		}
	}
}

func (s *Store) Enqueue(ctx context.Context, job domain.QueuedJob) error {
	arr, err := s.readQueue(ctx)
	if err != nil {
		s.warn("Enqueue", err)
		return s.fallback.Enqueue(ctx, job)
	}
	arr = append(arr, job)
	sortQueue(arr)
	if err := s.writeQueue(ctx, arr); err != nil {
		s.warn("Enqueue", err)
		return s.fallback.Enqueue(ctx, job)
	}
	return nil
}

func (s *Store) PopHighest(ctx context.Context) (domain.QueuedJob, bool, error) {
	arr, err := s.readQueue(ctx)
	if err != nil {
		s.warn("PopHighest", err)
		return s.fallback.PopHighest(ctx)
	}
	if len(arr) == 0 {
		return domain.QueuedJob{}, false, nil
	}
	top := arr[0]
	arr = arr[1:]
	if err := s.writeQueue(ctx, arr); err != nil {
		s.warn("PopHighest", err)
		return s.fallback.PopHighest(ctx)
	}
	return top, true, nil
}

func (s *Store) Peek(ctx context.Context, gatewayJobID string) (domain.QueuedJob, bool, error) {
	arr, err := s.readQueue(ctx)
	if err != nil {
		s.warn("Peek", err)
		return s.fallback.Peek(ctx, gatewayJobID)
	}
	for _, j := range arr {
		if j.GatewayJobID == gatewayJobID {
			return j, true, nil
		}
	}
	return domain.QueuedJob{}, false, nil
}

func (s *Store) Remove(ctx context.Context, gatewayJobID string) (bool, error) {
	arr, err := s.readQueue(ctx)
	if err != nil {
		s.warn("Remove", err)
		return s.fallback.Remove(ctx, gatewayJobID)
	}
	out := arr[:0]
	removed := false
	for _, j := range arr {
		if j.GatewayJobID == gatewayJobID {
			removed = true
			continue
		}
		out = append(out, j)
	}
	if err := s.writeQueue(ctx, out); err != nil {
		s.warn("Remove", err)
		return s.fallback.Remove(ctx, gatewayJobID)
	}
	return removed, nil
}

func (s *Store) ReEnqueue(ctx context.Context, job domain.QueuedJob) error {
	return s.Enqueue(ctx, job)
}

// --- SettingsStore ---

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.rdb.Get(cctx, settingsPfx+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		s.warn("Get", err)
		return s.fallback.Get(ctx, key)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	cctx, cancel := s.ctx(ctx)
	defer cancel()
	if err := s.rdb.Set(cctx, settingsPfx+key, value, 0).Err(); err != nil {
		s.warn("Set", err)
		return s.fallback.Set(ctx, key, value)
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error { return s.rdb.Close() }
