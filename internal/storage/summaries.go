package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketday/tracker/internal/contracts"
)

// SummaryRepository implements contracts.SummaryRepository. The whole
// run summary is stored as one jsonb document per trade date.
type SummaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository creates a summary repository.
func NewSummaryRepository(pool *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{pool: pool}
}

// Save upserts the summary document for a trade date.
func (r *SummaryRepository) Save(ctx context.Context, date time.Time, doc *contracts.SummaryDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal summary document: %w", err)
	}

	query := `
		INSERT INTO tracker.run_summaries (date, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (date) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, date, payload); err != nil {
		return fmt.Errorf("save summary document: %w", err)
	}
	return nil
}

// GetByDate retrieves the summary document for a trade date.
func (r *SummaryRepository) GetByDate(ctx context.Context, date time.Time) (*contracts.SummaryDocument, error) {
	query := `SELECT document FROM tracker.run_summaries WHERE date = $1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, date).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("summary for %s: %w", date.Format("2006-01-02"), contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query summary document: %w", err)
	}

	var doc contracts.SummaryDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal summary document: %w", err)
	}
	return &doc, nil
}

// AvailableDates lists trade dates with a stored summary, newest first.
func (r *SummaryRepository) AvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	query := `
		SELECT date FROM tracker.run_summaries
		ORDER BY date DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query summary dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan summary date: %w", err)
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}
