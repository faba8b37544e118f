package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comfygw/gateway/internal/domain"
)

func (s *Store) SetPromptWorker(ctx context.Context, promptID, workerID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_worker (prompt_id, worker_id) VALUES ($1, $2)
		ON CONFLICT (prompt_id) DO UPDATE SET worker_id = EXCLUDED.worker_id
	`, promptID, workerID)
	if err != nil {
		return fmt.Errorf("set prompt worker: %w", err)
	}
	return nil
}

func (s *Store) GetPromptWorker(ctx context.Context, promptID string) (string, bool, error) {
	var workerID string
	err := s.pool.QueryRow(ctx, `SELECT worker_id FROM task_worker WHERE prompt_id = $1`, promptID).Scan(&workerID)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get prompt worker: %w", err)
	}
	return workerID, true, nil
}

func (s *Store) SetGatewayJob(ctx context.Context, gatewayJobID, promptID, workerID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gateway_job (gateway_job_id, prompt_id, worker_id) VALUES ($1, $2, $3)
		ON CONFLICT (gateway_job_id) DO UPDATE SET prompt_id = EXCLUDED.prompt_id, worker_id = EXCLUDED.worker_id
	`, gatewayJobID, promptID, workerID)
	if err != nil {
		return fmt.Errorf("set gateway job: %w", err)
	}
	return nil
}

func (s *Store) GetGatewayJob(ctx context.Context, gatewayJobID string) (domain.GatewayJobMapping, bool, error) {
	var m domain.GatewayJobMapping
	m.GatewayJobID = gatewayJobID
	err := s.pool.QueryRow(ctx, `SELECT prompt_id, worker_id FROM gateway_job WHERE gateway_job_id = $1`, gatewayJobID).
		Scan(&m.PromptID, &m.WorkerID)
	if err == pgx.ErrNoRows {
		return domain.GatewayJobMapping{}, false, nil
	}
	if err != nil {
		return domain.GatewayJobMapping{}, false, fmt.Errorf("get gateway job: %w", err)
	}
	return m, true, nil
}
