// Package registry is the worker registry of SPEC_FULL.md section 4.2: the
// canonical {worker_id -> WorkerInfo} map, populated from persistence on
// construction, write-through on every mutation, grounded on the
// registration/bookkeeping pattern in _teacher_ref/workers/simple_pool.go.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gwerrors"
	"github.com/comfygw/gateway/internal/store"
)

// Registry owns all WorkerInfo mutation. Every other component requests
// changes through Add/Update/Remove/UpdateLoad rather than touching
// persistence directly.
type Registry struct {
	mu sync.RWMutex

	workers store.WorkerStore

	cache map[string]domain.WorkerInfo

	cacheTTL time.Duration

	globalUsername string
	globalPassword string
}

// New constructs a Registry and loads its cache from the persistence
// backend. ttl is the cache_valid window (default 5s per spec.md 4.2).
func New(ctx context.Context, workers store.WorkerStore, ttl time.Duration, globalUsername, globalPassword string) (*Registry, error) {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	r := &Registry{
		workers:        workers,
		cache:          make(map[string]domain.WorkerInfo),
		cacheTTL:       ttl,
		globalUsername: globalUsername,
		globalPassword: globalPassword,
	}
	all, err := workers.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}
	for _, w := range all {
		r.cache[w.WorkerID] = w
	}
	return r, nil
}

// List returns a stable, worker_id-ordered snapshot.
func (r *Registry) List() []domain.WorkerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.WorkerInfo, 0, len(r.cache))
	for _, w := range r.cache {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

// Get returns a single worker's cached row.
func (r *Registry) Get(workerID string) (domain.WorkerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.cache[workerID]
	return w, ok
}

// Add assigns a uuid, normalizes the base URL by stripping a trailing
// slash, and write-through persists the new worker.
func (r *Registry) Add(ctx context.Context, baseURL, displayName string, weight int, username, password string) (domain.WorkerInfo, error) {
	if weight <= 0 {
		weight = 1
	}
	w := domain.WorkerInfo{
		WorkerID:      uuid.NewString(),
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		DisplayName:   displayName,
		Weight:        weight,
		Enabled:       true,
		AuthUsername:  username,
		AuthPassword:  password,
		CacheTimestamp: time.Time{},
	}
	if err := r.workers.UpsertWorker(ctx, w); err != nil {
		return domain.WorkerInfo{}, fmt.Errorf("registry: add: %w", err)
	}
	r.mu.Lock()
	r.cache[w.WorkerID] = w
	r.mu.Unlock()
	return w, nil
}

// Update applies the given mutator to the existing row and write-through
// persists the result. Returns gwerrors.ErrNotFound if the worker is absent.
func (r *Registry) Update(ctx context.Context, workerID string, mutate func(*domain.WorkerInfo)) (domain.WorkerInfo, error) {
	r.mu.Lock()
	w, ok := r.cache[workerID]
	if !ok {
		r.mu.Unlock()
		return domain.WorkerInfo{}, gwerrors.ErrNotFound
	}
	mutate(&w)
	w.BaseURL = strings.TrimSuffix(w.BaseURL, "/")
	r.cache[workerID] = w
	r.mu.Unlock()

	if err := r.workers.UpsertWorker(ctx, w); err != nil {
		return domain.WorkerInfo{}, fmt.Errorf("registry: update: %w", err)
	}
	return w, nil
}

// Remove purges the registry entry only; MappingStore rows referencing the
// worker are left untouched per spec.md section 4 invariant.
func (r *Registry) Remove(ctx context.Context, workerID string) error {
	r.mu.Lock()
	delete(r.cache, workerID)
	r.mu.Unlock()

	if err := r.workers.DeleteWorker(ctx, workerID); err != nil {
		return fmt.Errorf("registry: remove: %w", err)
	}
	return nil
}

// UpdateLoad refreshes the registry's load/health cache and cache_timestamp.
// It does not write through to persistence: load is a cache, not a
// durable fact, and is rebuilt by the selector on every dispatch.
func (r *Registry) UpdateLoad(workerID string, running, pending int, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.cache[workerID]
	if !ok {
		return
	}
	w.QueueRunning = running
	w.QueuePending = pending
	w.Healthy = healthy
	w.CacheTimestamp = time.Now()
	r.cache[workerID] = w
}

// Auth returns per-worker credentials if present, otherwise the
// process-global fallback pair.
func (r *Registry) Auth(workerID string) (username, password string) {
	r.mu.RLock()
	w, ok := r.cache[workerID]
	r.mu.RUnlock()
	if ok && w.AuthUsername != "" {
		return w.AuthUsername, w.AuthPassword
	}
	return r.globalUsername, r.globalPassword
}

// SetGlobalAuth updates the process-global fallback credential pair, used
// by the settings component when an operator rotates the shared password.
func (r *Registry) SetGlobalAuth(username, password string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalUsername = username
	r.globalPassword = password
}

// CacheValid reports whether a worker's load cache is still within TTL.
func (r *Registry) CacheValid(w domain.WorkerInfo, now time.Time) bool {
	return w.CacheValid(now, r.cacheTTL)
}
