// Package dispatcher is the single background batch loop of spec.md
// section 4.6 / SPEC_FULL.md section 5: pop, select, post_prompt, record.
package dispatcher

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gatewaylog"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/selector"
	"github.com/comfygw/gateway/internal/store"
	"github.com/comfygw/gateway/internal/workerclient"
)

// ProgressRegistrar is implemented by the progress monitor; the dispatcher
// registers a prompt_id with its owning worker immediately after a
// successful submit so progress events have somewhere to land.
type ProgressRegistrar interface {
	RegisterPrompt(workerID, promptID string)
}

// Dispatcher runs the batch loop as a single goroutine, started by Run and
// stopped via context cancellation.
type Dispatcher struct {
	queue    store.PendingQueueStore
	mappings store.MappingStore
	history  store.HistoryStore
	reg      *registry.Registry
	sel      *selector.Selector
	client   *workerclient.Client
	progress ProgressRegistrar

	tick  time.Duration
	batch int

	log *gatewaylog.Logger
}

// New builds a Dispatcher. progress may be nil, in which case registration
// is skipped (useful for tests exercising the loop in isolation).
func New(queue store.PendingQueueStore, mappings store.MappingStore, history store.HistoryStore,
	reg *registry.Registry, sel *selector.Selector, client *workerclient.Client, progress ProgressRegistrar,
	tick time.Duration, batch int) *Dispatcher {
	if tick <= 0 {
		tick = time.Second
	}
	if batch <= 0 {
		batch = 20
	}
	return &Dispatcher{
		queue: queue, mappings: mappings, history: history,
		reg: reg, sel: sel, client: client, progress: progress,
		tick: tick, batch: batch,
		log: gatewaylog.Default().WithComponent("dispatcher"),
	}
}

// Run loops until ctx is cancelled, executing one batch per tick.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed := d.RunBatch(ctx)
			if processed == 0 {
				// An empty batch means the queue was drained or nothing
				// could be selected; skip straight to the next tick
				// rather than busy-looping.
				continue
			}
		}
	}
}

// RunBatch performs up to d.batch (pop, select, post_prompt) iterations and
// returns how many jobs were successfully dispatched.
func (d *Dispatcher) RunBatch(ctx context.Context) int {
	dispatched := 0
	for i := 0; i < d.batch; i++ {
		job, ok, err := d.queue.PopHighest(ctx)
		if err != nil {
			d.log.Error("pop highest failed", map[string]interface{}{"error": err.Error()})
			return dispatched
		}
		if !ok {
			return dispatched
		}

		worker, ok := d.sel.Select(ctx)
		if !ok {
			// No candidate survived selection: put the job back and end
			// the batch, per spec.md section 4.6.
			if err := d.queue.ReEnqueue(ctx, job); err != nil {
				d.log.Error("re-enqueue after failed selection", map[string]interface{}{
					"gateway_job_id": job.GatewayJobID, "error": err.Error(),
				})
			}
			return dispatched
		}

		if d.dispatchOne(ctx, job, worker) {
			dispatched++
		}
	}
	return dispatched
}

// dispatchOne submits one job to the chosen worker and applies the
// resulting state transition.
func (d *Dispatcher) dispatchOne(ctx context.Context, job domain.QueuedJob, worker domain.WorkerInfo) bool {
	user, pass := d.reg.Auth(worker.WorkerID)
	body, status := d.client.PostPrompt(ctx, worker.BaseURL, job.Prompt, job.ClientID, workerclient.Auth{Username: user, Password: pass})

	switch {
	case status == http.StatusOK:
		// fall through to success path below
	case status == http.StatusServiceUnavailable:
		if err := d.queue.ReEnqueue(ctx, job); err != nil {
			d.log.Error("re-enqueue after 503", map[string]interface{}{
				"gateway_job_id": job.GatewayJobID, "error": err.Error(),
			})
		}
		return false
	default:
		if err := d.history.MarkFailed(ctx, job.GatewayJobID, httpErrorMessage(status, body), time.Now().Unix()); err != nil {
			d.log.Error("mark failed after non-200", map[string]interface{}{
				"gateway_job_id": job.GatewayJobID, "status": status, "error": err.Error(),
			})
		}
		return false
	}

	promptID, err := parsePromptID(body)
	if err != nil || promptID == "" {
		promptID = uuid.NewString()
	}

	if err := d.mappings.SetPromptWorker(ctx, promptID, worker.WorkerID); err != nil {
		d.log.Error("set prompt worker mapping", map[string]interface{}{"error": err.Error()})
	}
	if err := d.mappings.SetGatewayJob(ctx, job.GatewayJobID, promptID, worker.WorkerID); err != nil {
		d.log.Error("set gateway job mapping", map[string]interface{}{"error": err.Error()})
	}

	updated, ok := d.reg.Get(worker.WorkerID)
	if ok {
		d.reg.UpdateLoad(worker.WorkerID, updated.QueueRunning+1, updated.QueuePending, updated.Healthy)
	}

	if err := d.history.Create(ctx, job.GatewayJobID, job.Priority); err != nil {
		d.log.Error("create history record", map[string]interface{}{"error": err.Error()})
	}
	if err := d.history.MarkSubmitted(ctx, job.GatewayJobID, promptID, worker.WorkerID, time.Now().Unix()); err != nil {
		d.log.Error("mark submitted", map[string]interface{}{"error": err.Error()})
	}

	if d.progress != nil {
		d.progress.RegisterPrompt(worker.WorkerID, promptID)
	}

	return true
}

func httpErrorMessage(status int, body []byte) string {
	if len(body) == 0 {
		return http.StatusText(status)
	}
	if len(body) > 500 {
		body = body[:500]
	}
	return string(body)
}
