package postgres

import (
	"context"
	"fmt"

	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/domain"
	"github.com/docsofdw/hk-btc-treasuries-sub000/internal/storage"
)

// RunLogStore implements storage.RunLogStore using PostgreSQL. Append-only.
type RunLogStore struct {
	pool *Pool
}

// NewRunLogStore creates a new RunLogStore.
func NewRunLogStore(pool *Pool) *RunLogStore {
	return &RunLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunLogStore = (*RunLogStore)(nil)

// Insert appends a run log record and returns its id.
func (s *RunLogStore) Insert(ctx context.Context, rl *domain.ScraperRunLog) (int64, error) {
	query := `
		INSERT INTO scraper_run_logs (job_id, status, found, new, duration_ms, error, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		rl.JobID,
		string(rl.Status),
		rl.Found,
		rl.New,
		rl.DurationMs,
		rl.Error,
		rl.StartedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run log: %w", err)
	}
	return id, nil
}

// GetByJob retrieves up to limit most recent records for a job.
func (s *RunLogStore) GetByJob(ctx context.Context, jobID string, limit int) ([]*domain.ScraperRunLog, error) {
	query := `
		SELECT id, job_id, status, found, new, duration_ms, error, started_at, created_at
		FROM scraper_run_logs
		WHERE job_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("get run logs by job: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ScraperRunLog
	for rows.Next() {
		var rl domain.ScraperRunLog
		var status string
		err := rows.Scan(
			&rl.ID,
			&rl.JobID,
			&status,
			&rl.Found,
			&rl.New,
			&rl.DurationMs,
			&rl.Error,
			&rl.StartedAt,
			&rl.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run log row: %w", err)
		}
		rl.Status = domain.RunStatus(status)
		logs = append(logs, &rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run log rows: %w", err)
	}
	return logs, nil
}
