// Package api is the Gateway façade of SPEC_FULL.md section 7: the only
// surface out-of-scope collaborators (HTTP routing, admin login, template
// CRUD, API-key management) address the core through. It translates
// spec.md section 6's external interfaces into typed Go methods so a thin
// route layer is all that is left to write.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gwerrors"
	"github.com/comfygw/gateway/internal/history"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/selector"
	"github.com/comfygw/gateway/internal/settings"
	"github.com/comfygw/gateway/internal/store"
	"github.com/comfygw/gateway/internal/workerclient"
)

// KeyValidator is the out-of-scope API-key management collaborator's entry
// point: Submit calls it before admission. The default implementation is
// permissive, giving the excluded feature a real call site without
// implementing key storage/CRUD, per SPEC_FULL.md section 9.
type KeyValidator interface {
	Validate(ctx context.Context, clientID string, prompt json.RawMessage) error
}

type permissiveKeyValidator struct{}

func (permissiveKeyValidator) Validate(context.Context, string, json.RawMessage) error { return nil }

// TemplateExpander is the out-of-scope workflow-template-engine
// collaborator's entry point, per SPEC_FULL.md section 9. The default
// implementation reports every template as unknown.
type TemplateExpander interface {
	Expand(templateID string, params json.RawMessage) (prompt json.RawMessage, err error)
}

type unimplementedTemplateExpander struct{}

func (unimplementedTemplateExpander) Expand(string, json.RawMessage) (json.RawMessage, error) {
	return nil, gwerrors.ErrNotFound
}

// Gateway is the single entry point external collaborators call into.
type Gateway struct {
	reg      *registry.Registry
	queue    store.PendingQueueStore
	mappings store.MappingStore
	historyS *history.Service
	client   *workerclient.Client
	sel      *selector.Selector
	settingsS *settings.Service

	keyValidator     KeyValidator
	templateExpander TemplateExpander
}

// Option configures optional Gateway collaborators.
type Option func(*Gateway)

// WithKeyValidator installs the API-key management collaborator's entry
// point. Omit to keep the default permissive behavior.
func WithKeyValidator(v KeyValidator) Option { return func(g *Gateway) { g.keyValidator = v } }

// WithTemplateExpander installs the workflow-template-engine collaborator's
// entry point. Omit to keep the default "not implemented" behavior.
func WithTemplateExpander(e TemplateExpander) Option {
	return func(g *Gateway) { g.templateExpander = e }
}

// New builds a Gateway bound to the core services.
func New(reg *registry.Registry, queue store.PendingQueueStore, mappings store.MappingStore,
	historyS *history.Service, client *workerclient.Client, sel *selector.Selector, settingsS *settings.Service,
	opts ...Option) *Gateway {
	g := &Gateway{
		reg: reg, queue: queue, mappings: mappings, historyS: historyS,
		client: client, sel: sel, settingsS: settingsS,
		keyValidator:     permissiveKeyValidator{},
		templateExpander: unimplementedTemplateExpander{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubmitResult is Submit's response. For a direct (unprioritized) submit,
// PromptID/Number come from the worker's own response body. For a queued
// submit, GatewayJobID/Status are populated instead.
type SubmitResult struct {
	PromptID     string          `json:"prompt_id,omitempty"`
	Number       int             `json:"number,omitempty"`
	GatewayJobID string          `json:"gateway_job_id,omitempty"`
	Status       string          `json:"status,omitempty"`
	RawWorkerBody json.RawMessage `json:"-"`
}

// Submit implements spec.md section 6's direct/queued submission split. If
// priority is nil, a worker is selected and the prompt is submitted
// immediately; if no worker is available, ErrNoCapacity is returned. If
// priority is non-nil, the job is enqueued and a gateway_job_id returned.
func (g *Gateway) Submit(ctx context.Context, prompt json.RawMessage, clientID string, priority *int) (SubmitResult, error) {
	if err := g.keyValidator.Validate(ctx, clientID, prompt); err != nil {
		return SubmitResult{}, fmt.Errorf("submit: key validation: %w", err)
	}

	if priority != nil {
		gatewayJobID := uuid.NewString()
		job := domain.QueuedJob{
			GatewayJobID: gatewayJobID,
			Prompt:       prompt,
			ClientID:     clientID,
			Priority:     *priority,
			CreatedAt:    time.Now(),
		}
		if err := g.queue.Enqueue(ctx, job); err != nil {
			return SubmitResult{}, fmt.Errorf("submit: enqueue: %w", err)
		}
		if err := g.historyS.Create(ctx, gatewayJobID, *priority); err != nil {
			return SubmitResult{}, fmt.Errorf("submit: create history: %w", err)
		}
		return SubmitResult{GatewayJobID: gatewayJobID, Status: string(domain.StatusQueued)}, nil
	}

	worker, ok := g.sel.Select(ctx)
	if !ok {
		return SubmitResult{}, gwerrors.ErrNoCapacity
	}

	user, pass := g.reg.Auth(worker.WorkerID)
	body, status := g.client.PostPrompt(ctx, worker.BaseURL, prompt, clientID, workerclient.Auth{Username: user, Password: pass})
	if status != 200 {
		return SubmitResult{}, fmt.Errorf("submit: worker returned status %d: %w", status, gwerrors.ErrTransport)
	}

	var resp workerclient.PromptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SubmitResult{}, fmt.Errorf("submit: parse worker response: %w", gwerrors.ErrProtocol)
	}

	if err := g.mappings.SetPromptWorker(ctx, resp.PromptID, worker.WorkerID); err != nil {
		return SubmitResult{}, fmt.Errorf("submit: record mapping: %w", err)
	}
	if err := g.historyS.UpsertByPromptID(ctx, resp.PromptID, worker.WorkerID, 0); err != nil {
		return SubmitResult{}, fmt.Errorf("submit: record history: %w", err)
	}

	var raw map[string]json.RawMessage
	_ = json.Unmarshal(body, &raw)
	result := SubmitResult{PromptID: resp.PromptID, RawWorkerBody: body}
	if numberRaw, ok := raw["number"]; ok {
		_ = json.Unmarshal(numberRaw, &result.Number)
	}
	return result, nil
}

// SubmitTemplate expands a named template then delegates to Submit,
// keeping the workflow-template-engine represented at its seam per
// SPEC_FULL.md section 9.
func (g *Gateway) SubmitTemplate(ctx context.Context, templateID string, params json.RawMessage, clientID string, priority *int) (SubmitResult, error) {
	prompt, err := g.templateExpander.Expand(templateID, params)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit template: %w", err)
	}
	return g.Submit(ctx, prompt, clientID, priority)
}

// StatusResult is Status's response.
type StatusResult struct {
	Status   domain.Status `json:"status"`
	WorkerID string        `json:"worker_id,omitempty"`
	Progress *int          `json:"progress,omitempty"`
}

// Status reports prompt_id's state from its task-history record alone; the
// owning worker is not contacted, so neither its live history nor its queue
// is consulted. A prompt_id with no record reports StatusUnknown.
func (g *Gateway) Status(ctx context.Context, promptID string) (StatusResult, error) {
	rec, ok, err := g.historyS.GetByPromptID(ctx, promptID)
	if err != nil {
		return StatusResult{}, fmt.Errorf("status: %w", err)
	}
	if !ok {
		return StatusResult{Status: domain.StatusUnknown}, nil
	}
	progress := rec.Progress
	return StatusResult{Status: rec.Status, WorkerID: rec.WorkerID, Progress: &progress}, nil
}

// GatewayStatusResult is GatewayStatus's response.
type GatewayStatusResult struct {
	Status   domain.Status `json:"status"`
	PromptID string        `json:"prompt_id,omitempty"`
}

// GatewayStatus reports a queued-submission job's status by its
// gateway_job_id: "queued" while still in the pending queue, otherwise
// taken from the task-history record of the mapped prompt_id (or, with no
// mapping, the record whose task_id is gatewayJobID). The owning worker's
// live queue is not probed.
func (g *Gateway) GatewayStatus(ctx context.Context, gatewayJobID string) (GatewayStatusResult, error) {
	if _, ok, err := g.queue.Peek(ctx, gatewayJobID); err != nil {
		return GatewayStatusResult{}, fmt.Errorf("gateway status: peek: %w", err)
	} else if ok {
		return GatewayStatusResult{Status: domain.StatusQueued}, nil
	}

	mapping, ok, err := g.mappings.GetGatewayJob(ctx, gatewayJobID)
	if err != nil {
		return GatewayStatusResult{}, fmt.Errorf("gateway status: get mapping: %w", err)
	}
	if !ok {
		rec, ok, err := g.historyS.GetByTaskID(ctx, gatewayJobID)
		if err != nil {
			return GatewayStatusResult{}, fmt.Errorf("gateway status: history lookup: %w", err)
		}
		if !ok {
			return GatewayStatusResult{Status: domain.StatusUnknown}, nil
		}
		return GatewayStatusResult{Status: rec.Status, PromptID: rec.PromptID}, nil
	}

	rec, ok, err := g.historyS.GetByPromptID(ctx, mapping.PromptID)
	if err != nil {
		return GatewayStatusResult{}, fmt.Errorf("gateway status: history lookup: %w", err)
	}
	if !ok {
		return GatewayStatusResult{Status: domain.StatusUnknown, PromptID: mapping.PromptID}, nil
	}
	return GatewayStatusResult{Status: rec.Status, PromptID: mapping.PromptID}, nil
}

// View streams prompt_id's output file from its owning worker, preserving
// content-type, for the out-of-scope view-proxy collaborator.
func (g *Gateway) View(ctx context.Context, promptID string, query url.Values, w io.Writer) (contentType string, status int, err error) {
	workerID, ok, err := g.mappings.GetPromptWorker(ctx, promptID)
	if err != nil {
		return "", 0, fmt.Errorf("view: get mapping: %w", err)
	}
	if !ok {
		return "", 0, gwerrors.ErrNotFound
	}
	worker, ok := g.reg.Get(workerID)
	if !ok {
		return "", 0, gwerrors.ErrNotFound
	}
	user, pass := g.reg.Auth(workerID)
	return g.client.ProxyView(ctx, worker.BaseURL, query, workerclient.Auth{Username: user, Password: pass}, w)
}

// AggregatedWorker is one worker's entry in AggregatedQueue's per-worker
// section.
type AggregatedWorker struct {
	WorkerID string `json:"worker_id"`
	Running  int    `json:"running"`
	Pending  int    `json:"pending"`
	Healthy  bool   `json:"healthy"`
}

// AggregatedItem is one flattened queue entry with its 1-based position
// within its worker's list, per SPEC_FULL.md section 9 (supplemented from
// original_source/routes/queue.py).
type AggregatedItem struct {
	WorkerID string `json:"worker_id"`
	Entry    any    `json:"entry"`
	Position int    `json:"position"`
}

// AggregatedQueueResult is AggregatedQueue's response.
type AggregatedQueueResult struct {
	Workers []AggregatedWorker `json:"workers"`
	Running []AggregatedItem   `json:"running"`
	Pending []AggregatedItem   `json:"pending"`
}

// AggregatedQueue probes every enabled worker's queue in parallel (5s
// timeout each) and returns per-worker counts plus flattened,
// position-annotated running/pending lists, per spec.md section 6.
func (g *Gateway) AggregatedQueue(ctx context.Context) AggregatedQueueResult {
	workers := g.reg.List()
	type probed struct {
		worker  domain.WorkerInfo
		snap    workerclient.QueueSnapshot
		healthy bool
	}
	results := make([]probed, 0, len(workers))
	resultsCh := make(chan probed, len(workers))

	count := 0
	for _, w := range workers {
		if !w.Enabled {
			continue
		}
		count++
		go func(w domain.WorkerInfo) {
			user, pass := g.reg.Auth(w.WorkerID)
			snap, ok := g.client.FetchQueue(ctx, w.BaseURL, workerclient.Auth{Username: user, Password: pass}, 5*time.Second)
			resultsCh <- probed{worker: w, snap: snap, healthy: ok}
		}(w)
	}
	for i := 0; i < count; i++ {
		results = append(results, <-resultsCh)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].worker.WorkerID < results[j].worker.WorkerID })

	out := AggregatedQueueResult{}
	for _, r := range results {
		running, pending := 0, 0
		if r.healthy {
			running, pending = workerclient.ParseQueueCounts(r.snap)
		}
		out.Workers = append(out.Workers, AggregatedWorker{
			WorkerID: r.worker.WorkerID, Running: running, Pending: pending, Healthy: r.healthy,
		})
		if !r.healthy {
			continue
		}
		for i, entry := range r.snap.QueueRunning {
			out.Running = append(out.Running, AggregatedItem{WorkerID: r.worker.WorkerID, Entry: entry, Position: i + 1})
		}
		for i, entry := range r.snap.QueuePending {
			out.Pending = append(out.Pending, AggregatedItem{WorkerID: r.worker.WorkerID, Entry: entry, Position: i + 1})
		}
	}
	return out
}

// RegisterWorker runs the register entry point of spec.md section 6: unless
// skipHealth is set, it probes the worker and refuses registration on
// failure.
func (g *Gateway) RegisterWorker(ctx context.Context, baseURL, displayName string, weight int, username, password string, skipHealth bool) (domain.WorkerInfo, error) {
	if !skipHealth {
		ok, detail := g.client.HealthProbe(ctx, baseURL, workerclient.Auth{Username: username, Password: password}, 5*time.Second)
		if !ok {
			return domain.WorkerInfo{}, fmt.Errorf("register worker: health probe failed (%s): %w", detail, gwerrors.ErrTransport)
		}
	}
	return g.reg.Add(ctx, baseURL, displayName, weight, username, password)
}

// UpdateWorker applies field-level changes to an existing worker.
func (g *Gateway) UpdateWorker(ctx context.Context, workerID string, mutate func(*domain.WorkerInfo)) (domain.WorkerInfo, error) {
	return g.reg.Update(ctx, workerID, mutate)
}

// DeleteWorker removes a worker from the registry, leaving historical
// mappings intact per spec.md section 3's invariant.
func (g *Gateway) DeleteWorker(ctx context.Context, workerID string) error {
	return g.reg.Remove(ctx, workerID)
}

// ManualHealth runs an immediate, synchronous health probe against one
// worker and updates its cached healthy bit.
func (g *Gateway) ManualHealth(ctx context.Context, workerID string) (bool, error) {
	worker, ok := g.reg.Get(workerID)
	if !ok {
		return false, gwerrors.ErrNotFound
	}
	user, pass := g.reg.Auth(workerID)
	ok2, _ := g.client.HealthProbe(ctx, worker.BaseURL, workerclient.Auth{Username: user, Password: pass}, 5*time.Second)
	g.reg.UpdateLoad(workerID, worker.QueueRunning, worker.QueuePending, ok2)
	return ok2, nil
}

// ListWorkers returns the registry's current snapshot.
func (g *Gateway) ListWorkers() []domain.WorkerInfo { return g.reg.List() }

// GetGlobalWorkerAuth returns the global worker auth pair's reportable
// shape (password never exposed, only has_password).
func (g *Gateway) GetGlobalWorkerAuth(ctx context.Context) (settings.GlobalAuth, error) {
	return g.settingsS.GetGlobalWorkerAuth(ctx)
}

// SetGlobalWorkerAuth updates the global worker auth pair.
func (g *Gateway) SetGlobalWorkerAuth(ctx context.Context, username, password string) error {
	return g.settingsS.SetGlobalWorkerAuth(ctx, username, password)
}
