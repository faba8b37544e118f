package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comfygw/gateway/internal/domain"
)

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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_history (task_id, priority, status, progress, submitted_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (task_id) DO NOTHING
	`, taskID, priority, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("create task record: %w", err)
	}
	return nil
}

func (s *Store) MarkSubmitted(ctx context.Context, taskID, promptID, workerID string, startedAt int64) error {
	started := time.Unix(startedAt, 0)
	_, err := s.pool.Exec(ctx, `
		UPDATE task_history
		SET prompt_id = $2, worker_id = $3, started_at = $4,
			status = CASE WHEN status IN ('done', 'failed') THEN status ELSE $5 END
		WHERE task_id = $1
	`, taskID, promptID, workerID, started, domain.StatusSubmitted)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if promptID != "" {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO task_worker (prompt_id, worker_id) VALUES ($1, $2)
			ON CONFLICT (prompt_id) DO NOTHING
		`, promptID, taskID)
		if err != nil {
			return fmt.Errorf("mark submitted: prompt index: %w", err)
		}
	}
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, taskID string, progress int) error {
	p := clampProgress(progress)
	_, err := s.pool.Exec(ctx, `
		UPDATE task_history
		SET progress = $2, status = CASE WHEN status NOT IN ('done', 'failed') THEN $3 ELSE status END
		WHERE task_id = $1 AND status NOT IN ('done', 'failed') AND progress <= $2
	`, taskID, p, domain.StatusRunning)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, taskID string, resultBlob []byte, completedAt int64) error {
	completed := time.Unix(completedAt, 0)
	_, err := s.pool.Exec(ctx, `
		UPDATE task_history
		SET status = $2, progress = 100, result_blob = $3, completed_at = $4
		WHERE task_id = $1 AND status NOT IN ('done', 'failed')
	`, taskID, domain.StatusDone, resultBlob, completed)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, taskID, errorMessage string, completedAt int64) error {
	completed := time.Unix(completedAt, 0)
	_, err := s.pool.Exec(ctx, `
		UPDATE task_history
		SET status = $2, error_message = $3, completed_at = $4
		WHERE task_id = $1 AND status NOT IN ('done', 'failed')
	`, taskID, domain.StatusFailed, errorMessage, completed)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// UpsertByPromptID implements the "first upsert wins" policy of
// SPEC_FULL.md section 11: if a task_history row is already indexed under
// promptID via task_worker, its worker_id is updated in place; otherwise a
// new row keyed by promptID is created.
func (s *Store) UpsertByPromptID(ctx context.Context, promptID, workerID string, priority int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert by prompt id: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var taskID string
	err = tx.QueryRow(ctx, `SELECT worker_id FROM task_worker WHERE prompt_id = $1`, promptID).Scan(&taskID)
	switch {
	case err == pgx.ErrNoRows:
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_worker (prompt_id, worker_id) VALUES ($1, $1)
			ON CONFLICT (prompt_id) DO NOTHING
		`, promptID); err != nil {
			return fmt.Errorf("upsert by prompt id: index: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_history (task_id, prompt_id, worker_id, priority, status, progress, submitted_at)
			VALUES ($1, $1, $2, $3, $4, 0, now())
			ON CONFLICT (task_id) DO NOTHING
		`, promptID, workerID, priority, domain.StatusRunning); err != nil {
			return fmt.Errorf("upsert by prompt id: insert: %w", err)
		}
	case err != nil:
		return fmt.Errorf("upsert by prompt id: lookup: %w", err)
	default:
		if _, err := tx.Exec(ctx, `UPDATE task_history SET worker_id = $2 WHERE task_id = $1`, taskID, workerID); err != nil {
			return fmt.Errorf("upsert by prompt id: update: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Sync merges a reconciled snapshot from a worker's queue/history endpoints
// into task_history, never regressing progress and never reopening a
// terminal record, mirroring memstore.Store.Sync.
func (s *Store) Sync(ctx context.Context, rec domain.TaskRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sync: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	taskID := rec.TaskID
	if taskID == "" && rec.PromptID != "" {
		var existing string
		err := tx.QueryRow(ctx, `SELECT worker_id FROM task_worker WHERE prompt_id = $1`, rec.PromptID).Scan(&existing)
		if err == nil {
			taskID = existing
		} else {
			taskID = rec.PromptID
		}
	}
	if taskID == "" {
		return nil
	}

	var status string
	var progress int
	err = tx.QueryRow(ctx, `SELECT status, progress FROM task_history WHERE task_id = $1`, taskID).Scan(&status, &progress)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("sync: lookup: %w", err)
	}
	if err == nil && (status == string(domain.StatusDone) || status == string(domain.StatusFailed)) {
		return tx.Commit(ctx)
	}

	newProgress := progress
	if clampProgress(rec.Progress) > progress {
		newProgress = clampProgress(rec.Progress)
	}
	newStatus := status
	if rec.Status != "" {
		newStatus = string(rec.Status)
	}
	if newStatus == "" {
		newStatus = string(domain.StatusPending)
	}

	if err == pgx.ErrNoRows {
		_, err := tx.Exec(ctx, `
			INSERT INTO task_history (task_id, prompt_id, worker_id, status, progress, error_message, result_blob, started_at, completed_at, submitted_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, now())
		`, taskID, rec.PromptID, rec.WorkerID, newStatus, newProgress, rec.ErrorMessage, rec.ResultBlob, rec.StartedAt, rec.CompletedAt)
		if err != nil {
			return fmt.Errorf("sync: insert: %w", err)
		}
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE task_history SET
			prompt_id = COALESCE(NULLIF($2, ''), prompt_id),
			worker_id = COALESCE(NULLIF($3, ''), worker_id),
			status = $4,
			progress = $5,
			error_message = COALESCE(NULLIF($6, ''), error_message),
			result_blob = COALESCE($7, result_blob),
			started_at = COALESCE($8, started_at),
			completed_at = COALESCE($9, completed_at)
		WHERE task_id = $1
	`, taskID, rec.PromptID, rec.WorkerID, newStatus, newProgress, rec.ErrorMessage, rec.ResultBlob, rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("sync: update: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) List(ctx context.Context, limit, offset int, workerID, status string) ([]domain.TaskRecord, error) {
	query := `
		SELECT task_id, prompt_id, worker_id, priority, status, progress, error_message,
			submitted_at, started_at, completed_at, result_blob
		FROM task_history
		WHERE ($1 = '' OR worker_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY submitted_at DESC
		LIMIT $3 OFFSET $4
	`
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, query, workerID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TaskRecord, 0)
	for rows.Next() {
		rec, err := scanTaskRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetByTaskID(ctx context.Context, taskID string) (domain.TaskRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_id, prompt_id, worker_id, priority, status, progress, error_message,
			submitted_at, started_at, completed_at, result_blob
		FROM task_history WHERE task_id = $1
	`, taskID)
	rec, err := scanTaskRecord(row)
	if err == pgx.ErrNoRows {
		return domain.TaskRecord{}, false, nil
	}
	if err != nil {
		return domain.TaskRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) GetByPromptID(ctx context.Context, promptID string) (domain.TaskRecord, bool, error) {
	var taskID string
	err := s.pool.QueryRow(ctx, `SELECT worker_id FROM task_worker WHERE prompt_id = $1`, promptID).Scan(&taskID)
	if err == pgx.ErrNoRows {
		return domain.TaskRecord{}, false, nil
	}
	if err != nil {
		return domain.TaskRecord{}, false, fmt.Errorf("get by prompt id: %w", err)
	}
	return s.GetByTaskID(ctx, taskID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRecord(row rowScanner) (domain.TaskRecord, error) {
	var rec domain.TaskRecord
	var promptID, workerID, errMsg *string
	var resultBlob []byte
	err := row.Scan(&rec.TaskID, &promptID, &workerID, &rec.Priority, &rec.Status, &rec.Progress, &errMsg,
		&rec.SubmittedAt, &rec.StartedAt, &rec.CompletedAt, &resultBlob)
	if err != nil {
		return domain.TaskRecord{}, err
	}
	if promptID != nil {
		rec.PromptID = *promptID
	}
	if workerID != nil {
		rec.WorkerID = *workerID
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if resultBlob != nil {
		rec.ResultBlob = resultBlob
	}
	return rec, nil
}
