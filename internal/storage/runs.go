package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketday/tracker/internal/contracts"
)

// RunRepository implements contracts.RunRepository, the audit trail of
// tracking runs.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a run repository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Create records a started run and returns its id.
func (r *RunRepository) Create(ctx context.Context, startedAt time.Time) (int64, error) {
	query := `
		INSERT INTO tracker.runs (started_at, status)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, startedAt, string(contracts.RefreshRunning)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// Finish records a run's terminal outcome.
func (r *RunRepository) Finish(ctx context.Context, run *contracts.Run) error {
	query := `
		UPDATE tracker.runs SET
			finished_at = $2,
			status = $3,
			total_symbols = $4,
			failed_symbols = $5,
			error = $6
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, string(run.Status),
		run.TotalSymbols, run.FailedSymbols, run.Error,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Recent lists the latest runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]*contracts.Run, error) {
	query := `
		SELECT id, started_at, finished_at, status, total_symbols, failed_symbols, COALESCE(error, '')
		FROM tracker.runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*contracts.Run
	for rows.Next() {
		var run contracts.Run
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt,
			&run.Status, &run.TotalSymbols, &run.FailedSymbols, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
