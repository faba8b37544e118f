// Package selector implements the dispatch-time worker selection algorithm
// of spec.md section 4.5 / SPEC_FULL.md section 5: re-probe every enabled
// worker on every call, never trust stale cache, prefer an idle worker,
// then least-loaded, with deterministic tie-breaks.
package selector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/workerclient"
)

// Selector evaluates candidate workers fresh on every Select call.
type Selector struct {
	reg          *registry.Registry
	client       *workerclient.Client
	probeTimeout time.Duration
}

// New builds a Selector bound to a registry and worker client.
// probeTimeout is the fetch_queue deadline (default 5s per spec.md 4.5).
func New(reg *registry.Registry, client *workerclient.Client, probeTimeout time.Duration) *Selector {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Selector{reg: reg, client: client, probeTimeout: probeTimeout}
}

// Select runs the five-step algorithm and returns the chosen worker, or
// false if no candidate survives probing.
func (s *Selector) Select(ctx context.Context) (domain.WorkerInfo, bool) {
	candidates := s.enabledCandidates()
	if len(candidates) == 0 {
		return domain.WorkerInfo{}, false
	}

	surviving := s.probeAll(ctx, candidates)
	if len(surviving) == 0 {
		return domain.WorkerInfo{}, false
	}

	if idle := idleCandidates(surviving); len(idle) > 0 {
		sort.Slice(idle, func(i, j int) bool { return lessIdle(idle[i], idle[j]) })
		return idle[0], true
	}

	sort.Slice(surviving, func(i, j int) bool { return lessLoaded(surviving[i], surviving[j]) })
	return surviving[0], true
}

func (s *Selector) enabledCandidates() []domain.WorkerInfo {
	all := s.reg.List()
	out := make([]domain.WorkerInfo, 0, len(all))
	for _, w := range all {
		if w.Enabled {
			out = append(out, w)
		}
	}
	return out
}

// probeAll issues fetch_queue to every candidate in parallel, updates the
// registry's load cache with the result, and returns only the ones that
// answered healthily within the timeout.
func (s *Selector) probeAll(ctx context.Context, candidates []domain.WorkerInfo) []domain.WorkerInfo {
	type probeResult struct {
		worker  domain.WorkerInfo
		healthy bool
	}

	results := make([]probeResult, len(candidates))
	var wg sync.WaitGroup
	for i, w := range candidates {
		wg.Add(1)
		go func(i int, w domain.WorkerInfo) {
			defer wg.Done()
			user, pass := s.reg.Auth(w.WorkerID)
			snap, ok := s.client.FetchQueue(ctx, w.BaseURL, workerclient.Auth{Username: user, Password: pass}, s.probeTimeout)
			if !ok {
				s.reg.UpdateLoad(w.WorkerID, 0, 0, false)
				results[i] = probeResult{worker: w, healthy: false}
				return
			}
			running, pending := workerclient.ParseQueueCounts(snap)
			s.reg.UpdateLoad(w.WorkerID, running, pending, true)
			updated, _ := s.reg.Get(w.WorkerID)
			results[i] = probeResult{worker: updated, healthy: true}
		}(i, w)
	}
	wg.Wait()

	out := make([]domain.WorkerInfo, 0, len(results))
	for _, r := range results {
		if r.healthy {
			out = append(out, r.worker)
		}
	}
	return out
}

func idleCandidates(workers []domain.WorkerInfo) []domain.WorkerInfo {
	var out []domain.WorkerInfo
	for _, w := range workers {
		if w.QueueRunning == 0 {
			out = append(out, w)
		}
	}
	return out
}

// lessIdle orders idle candidates by (-weight, pending asc), with a
// worker-id tiebreak for determinism.
func lessIdle(a, b domain.WorkerInfo) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if a.QueuePending != b.QueuePending {
		return a.QueuePending < b.QueuePending
	}
	return a.WorkerID < b.WorkerID
}

// lessLoaded orders the surviving set by (running+pending asc, -weight),
// with a worker-id tiebreak for determinism.
func lessLoaded(a, b domain.WorkerInfo) bool {
	la, lb := a.LoadScore(), b.LoadScore()
	if la != lb {
		return la < lb
	}
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.WorkerID < b.WorkerID
}
