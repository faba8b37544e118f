package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comfygw/gateway/internal/domain"
)

func (s *Store) Enqueue(ctx context.Context, job domain.QueuedJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_queue (gateway_job_id, prompt, client_id, priority, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gateway_job_id) DO UPDATE SET
			prompt = EXCLUDED.prompt, client_id = EXCLUDED.client_id,
			priority = EXCLUDED.priority, created_at = EXCLUDED.created_at
	`, job.GatewayJobID, []byte(job.Prompt), job.ClientID, job.Priority, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// PopHighest removes and returns the highest-priority, oldest-enqueued job
// in a single transaction so two concurrent dispatchers can never pop the
// same row: the SELECT ... FOR UPDATE SKIP LOCKED picks one row, the DELETE
// removes exactly that row, matching the tiebreak order
// (priority DESC, created_at ASC, gateway_job_id ASC) used by memstore.
func (s *Store) PopHighest(ctx context.Context) (domain.QueuedJob, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.QueuedJob{}, false, fmt.Errorf("pop highest: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var job domain.QueuedJob
	var prompt []byte
	err = tx.QueryRow(ctx, `
		SELECT gateway_job_id, prompt, client_id, priority, created_at
		FROM pending_queue
		ORDER BY priority DESC, created_at ASC, gateway_job_id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&job.GatewayJobID, &prompt, &job.ClientID, &job.Priority, &job.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.QueuedJob{}, false, nil
	}
	if err != nil {
		return domain.QueuedJob{}, false, fmt.Errorf("pop highest: select: %w", err)
	}
	job.Prompt = json.RawMessage(prompt)

	if _, err := tx.Exec(ctx, `DELETE FROM pending_queue WHERE gateway_job_id = $1`, job.GatewayJobID); err != nil {
		return domain.QueuedJob{}, false, fmt.Errorf("pop highest: delete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.QueuedJob{}, false, fmt.Errorf("pop highest: commit: %w", err)
	}
	return job, true, nil
}

func (s *Store) Peek(ctx context.Context, gatewayJobID string) (domain.QueuedJob, bool, error) {
	var job domain.QueuedJob
	var prompt []byte
	err := s.pool.QueryRow(ctx, `
		SELECT gateway_job_id, prompt, client_id, priority, created_at
		FROM pending_queue WHERE gateway_job_id = $1
	`, gatewayJobID).Scan(&job.GatewayJobID, &prompt, &job.ClientID, &job.Priority, &job.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.QueuedJob{}, false, nil
	}
	if err != nil {
		return domain.QueuedJob{}, false, fmt.Errorf("peek: %w", err)
	}
	job.Prompt = json.RawMessage(prompt)
	return job, true, nil
}

func (s *Store) Remove(ctx context.Context, gatewayJobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_queue WHERE gateway_job_id = $1`, gatewayJobID)
	if err != nil {
		return false, fmt.Errorf("remove: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReEnqueue reinserts a job after a failed dispatch attempt, preserving its
// original created_at so it does not jump the queue against jobs that were
// already waiting.
func (s *Store) ReEnqueue(ctx context.Context, job domain.QueuedJob) error {
	return s.Enqueue(ctx, job)
}
