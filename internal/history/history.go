// Package history layers task-history operations over the HistoryStore
// port, adding the two seams SPEC_FULL.md section 9 recovers from
// original_source/: a result-blob URL rewriting hook, and the on-demand
// reconciliation sweep of spec.md section 4.9's List operation.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gatewaylog"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/store"
	"github.com/comfygw/gateway/internal/workerclient"
)

// URLRewriter rewrites a task record's worker-relative output URLs to
// gateway-relative ones before it is returned to a caller. The out-of-scope
// view-proxy collaborator owns the actual rewriting policy; the default
// implementation is a no-op so the seam exists without implementing it.
type URLRewriter interface {
	Rewrite(rec *domain.TaskRecord)
}

type noopRewriter struct{}

func (noopRewriter) Rewrite(*domain.TaskRecord) {}

// Service wraps a HistoryStore with URL rewriting and reconciliation.
type Service struct {
	store    store.HistoryStore
	reg      *registry.Registry
	client   *workerclient.Client
	rewriter URLRewriter
	batch    int
	log      *gatewaylog.Logger
}

// New builds a Service. rewriter may be nil, defaulting to a no-op.
// batch bounds the reconciliation sweep's parallelism (default 20, the
// same B as the dispatcher's batch size).
func New(historyStore store.HistoryStore, reg *registry.Registry, client *workerclient.Client, rewriter URLRewriter, batch int) *Service {
	if rewriter == nil {
		rewriter = noopRewriter{}
	}
	if batch <= 0 {
		batch = 20
	}
	return &Service{
		store: historyStore, reg: reg, client: client, rewriter: rewriter, batch: batch,
		log: gatewaylog.Default().WithComponent("history"),
	}
}

func (s *Service) Create(ctx context.Context, taskID string, priority int) error {
	return s.store.Create(ctx, taskID, priority)
}

func (s *Service) MarkSubmitted(ctx context.Context, taskID, promptID, workerID string, startedAt int64) error {
	return s.store.MarkSubmitted(ctx, taskID, promptID, workerID, startedAt)
}

func (s *Service) UpdateProgress(ctx context.Context, taskID string, progress int) error {
	return s.store.UpdateProgress(ctx, taskID, progress)
}

func (s *Service) MarkCompleted(ctx context.Context, taskID string, resultBlob []byte, completedAt int64) error {
	return s.store.MarkCompleted(ctx, taskID, resultBlob, completedAt)
}

func (s *Service) MarkFailed(ctx context.Context, taskID, errorMessage string, completedAt int64) error {
	return s.store.MarkFailed(ctx, taskID, errorMessage, completedAt)
}

func (s *Service) UpsertByPromptID(ctx context.Context, promptID, workerID string, priority int) error {
	return s.store.UpsertByPromptID(ctx, promptID, workerID, priority)
}

func (s *Service) Sync(ctx context.Context, rec domain.TaskRecord) error {
	return s.store.Sync(ctx, rec)
}

func (s *Service) GetByTaskID(ctx context.Context, taskID string) (domain.TaskRecord, bool, error) {
	rec, ok, err := s.store.GetByTaskID(ctx, taskID)
	if err != nil || !ok {
		return rec, ok, err
	}
	s.rewriter.Rewrite(&rec)
	return rec, true, nil
}

func (s *Service) GetByPromptID(ctx context.Context, promptID string) (domain.TaskRecord, bool, error) {
	rec, ok, err := s.store.GetByPromptID(ctx, promptID)
	if err != nil || !ok {
		return rec, ok, err
	}
	s.rewriter.Rewrite(&rec)
	return rec, true, nil
}

// List returns task history ordered by submitted_at desc, after first
// reconciling every non-terminal record in the page against its owning
// worker's get_history and fetch_queue endpoints, up to s.batch in
// parallel, per spec.md section 4.9.
func (s *Service) List(ctx context.Context, limit, offset int, workerID, status string) ([]domain.TaskRecord, error) {
	page, err := s.store.List(ctx, limit, offset, workerID, status)
	if err != nil {
		return nil, err
	}

	s.reconcile(ctx, page)

	page, err = s.store.List(ctx, limit, offset, workerID, status)
	if err != nil {
		return nil, err
	}
	for i := range page {
		s.rewriter.Rewrite(&page[i])
	}
	return page, nil
}

// StartScheduledSweep starts a cron-scheduled full reconciliation sweep,
// covering non-terminal records that no caller happens to List() on their
// own. It is a companion to, not a replacement for, List's on-demand
// sweep: List still reconciles synchronously so a direct caller never
// sees stale status. cronSpec follows robfig/cron's seconds-enabled
// 6-field syntax (e.g. "0 */5 * * * *" for every 5 minutes). The
// returned *cron.Cron is already started; callers stop it with its Stop
// method on shutdown.
func (s *Service) StartScheduledSweep(ctx context.Context, cronSpec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cronSpec, func() { s.sweepAll(ctx) }); err != nil {
		return nil, fmt.Errorf("history: schedule sweep: %w", err)
	}
	c.Start()
	return c, nil
}

// sweepAll paginates through every task_history row, reconciling each
// page's non-terminal records, independent of any caller's List call.
func (s *Service) sweepAll(ctx context.Context) {
	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		page, err := s.store.List(ctx, pageSize, offset, "", "")
		if err != nil {
			s.log.Error("scheduled sweep list", map[string]interface{}{"error": err.Error()})
			return
		}
		if len(page) == 0 {
			return
		}
		s.reconcile(ctx, page)
		if len(page) < pageSize {
			return
		}
	}
}

// reconcile runs the on-demand sweep over every non-terminal record, up to
// s.batch concurrently.
func (s *Service) reconcile(ctx context.Context, recs []domain.TaskRecord) {
	sem := make(chan struct{}, s.batch)
	var wg sync.WaitGroup
	for _, rec := range recs {
		if rec.Status.Terminal() || rec.PromptID == "" || rec.WorkerID == "" {
			continue
		}
		worker, ok := s.reg.Get(rec.WorkerID)
		if !ok {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rec domain.TaskRecord, worker domain.WorkerInfo) {
			defer wg.Done()
			defer func() { <-sem }()
			s.reconcileOne(ctx, rec, worker)
		}(rec, worker)
	}
	wg.Wait()
}

func (s *Service) reconcileOne(ctx context.Context, rec domain.TaskRecord, worker domain.WorkerInfo) {
	user, pass := s.reg.Auth(worker.WorkerID)
	auth := workerclient.Auth{Username: user, Password: pass}

	body, status, err := s.client.GetHistory(ctx, worker.BaseURL, rec.PromptID, auth)
	if err == nil && status == 200 && len(body) > 2 {
		// A non-empty history entry for this prompt_id means the worker
		// considers the job finished.
		if serr := s.store.Sync(ctx, domain.TaskRecord{
			TaskID: rec.TaskID, PromptID: rec.PromptID, WorkerID: rec.WorkerID,
			Status: domain.StatusDone, Progress: 100, ResultBlob: body,
		}); serr != nil {
			s.log.Error("reconcile sync done", map[string]interface{}{"task_id": rec.TaskID, "error": serr.Error()})
		}
		return
	}

	snap, ok := s.client.FetchQueue(ctx, worker.BaseURL, auth, 5*time.Second)
	if !ok {
		return
	}
	for _, entry := range snap.QueueRunning {
		if workerclient.QueueEntryMatchesPromptID(entry, rec.PromptID) {
			s.syncStatus(ctx, rec, domain.StatusRunning)
			return
		}
	}
	for _, entry := range snap.QueuePending {
		if workerclient.QueueEntryMatchesPromptID(entry, rec.PromptID) {
			s.syncStatus(ctx, rec, domain.StatusQueued)
			return
		}
	}

	// Neither in the worker's history nor its queue: treat as failed, per
	// spec.md section 4.6's "not-found after submit" terminal case.
	if serr := s.store.MarkFailed(ctx, rec.TaskID, "prompt not found on owning worker", time.Now().Unix()); serr != nil {
		s.log.Error("reconcile mark failed", map[string]interface{}{"task_id": rec.TaskID, "error": serr.Error()})
	}
}

func (s *Service) syncStatus(ctx context.Context, rec domain.TaskRecord, status domain.Status) {
	if err := s.store.Sync(ctx, domain.TaskRecord{
		TaskID: rec.TaskID, PromptID: rec.PromptID, WorkerID: rec.WorkerID, Status: status,
	}); err != nil {
		s.log.Error("reconcile sync status", map[string]interface{}{"task_id": rec.TaskID, "error": err.Error()})
	}
}
