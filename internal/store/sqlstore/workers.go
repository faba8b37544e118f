package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comfygw/gateway/internal/domain"
)

func (s *Store) ListWorkers(ctx context.Context) ([]domain.WorkerInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT worker_id, url, name, weight, enabled, auth_username, auth_password FROM workers`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkerInfo
	for rows.Next() {
		var w domain.WorkerInfo
		var name, user, pass *string
		if err := rows.Scan(&w.WorkerID, &w.BaseURL, &name, &w.Weight, &w.Enabled, &user, &pass); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		if name != nil {
			w.DisplayName = *name
		}
		if user != nil {
			w.AuthUsername = *user
		}
		if pass != nil {
			w.AuthPassword = *pass
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) GetWorker(ctx context.Context, workerID string) (domain.WorkerInfo, bool, error) {
	var w domain.WorkerInfo
	var name, user, pass *string
	w.WorkerID = workerID
	err := s.pool.QueryRow(ctx, `SELECT url, name, weight, enabled, auth_username, auth_password FROM workers WHERE worker_id = $1`, workerID).
		Scan(&w.BaseURL, &name, &w.Weight, &w.Enabled, &user, &pass)
	if err == pgx.ErrNoRows {
		return domain.WorkerInfo{}, false, nil
	}
	if err != nil {
		return domain.WorkerInfo{}, false, fmt.Errorf("get worker: %w", err)
	}
	if name != nil {
		w.DisplayName = *name
	}
	if user != nil {
		w.AuthUsername = *user
	}
	if pass != nil {
		w.AuthPassword = *pass
	}
	return w, true, nil
}

func (s *Store) UpsertWorker(ctx context.Context, w domain.WorkerInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workers (worker_id, url, name, weight, enabled, auth_username, auth_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (worker_id) DO UPDATE SET
			url = EXCLUDED.url, name = EXCLUDED.name, weight = EXCLUDED.weight,
			enabled = EXCLUDED.enabled, auth_username = EXCLUDED.auth_username, auth_password = EXCLUDED.auth_password
	`, w.WorkerID, w.BaseURL, w.DisplayName, w.Weight, w.Enabled, w.AuthUsername, w.AuthPassword)
	if err != nil {
		return fmt.Errorf("upsert worker: %w", err)
	}
	return nil
}

func (s *Store) DeleteWorker(ctx context.Context, workerID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM workers WHERE worker_id = $1`, workerID)
	if err != nil {
		return fmt.Errorf("delete worker: %w", err)
	}
	return nil
}
