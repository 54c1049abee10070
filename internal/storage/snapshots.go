// Package storage holds the Postgres repositories and file exporters
// behind the tracker's persistence layer. Tables live in the tracker
// schema; all writes are upserts keyed on (symbol, date) so re-running a
// day replaces that day's rows.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketday/tracker/internal/contracts"
)

// SnapshotRepository implements contracts.SnapshotRepository.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// SaveBatch upserts a day's snapshots in one round trip.
func (r *SnapshotRepository) SaveBatch(ctx context.Context, snapshots []*contracts.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	query := `
		INSERT INTO tracker.snapshots
			(symbol, date, name, exchange, index_name, open, high, low, close,
			 previous_close, change, change_percent, volume, market_cap)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (symbol, date) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			index_name = EXCLUDED.index_name,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			previous_close = EXCLUDED.previous_close,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent,
			volume = EXCLUDED.volume,
			market_cap = EXCLUDED.market_cap
	`

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(query,
			s.Symbol, s.Date, s.Name, s.Exchange, s.IndexName,
			s.Open, s.High, s.Low, s.Close,
			s.PreviousClose, s.Change, s.ChangePercent, s.Volume, s.MarketCap,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save snapshots: %w", err)
		}
	}
	return nil
}

// GetByDate retrieves all snapshots for a trade date, symbol order.
func (r *SnapshotRepository) GetByDate(ctx context.Context, date time.Time) ([]*contracts.Snapshot, error) {
	query := `
		SELECT symbol, date, name, exchange, index_name, open, high, low, close,
		       previous_close, change, change_percent, volume, market_cap
		FROM tracker.snapshots
		WHERE date = $1
		ORDER BY symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by date: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetBySymbolAndDate retrieves one symbol's snapshot for a trade date.
func (r *SnapshotRepository) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.Snapshot, error) {
	query := `
		SELECT symbol, date, name, exchange, index_name, open, high, low, close,
		       previous_close, change, change_percent, volume, market_cap
		FROM tracker.snapshots
		WHERE symbol = $1 AND date = $2
	`

	var s contracts.Snapshot
	err := r.pool.QueryRow(ctx, query, symbol, date).Scan(
		&s.Symbol, &s.Date, &s.Name, &s.Exchange, &s.IndexName,
		&s.Open, &s.High, &s.Low, &s.Close,
		&s.PreviousClose, &s.Change, &s.ChangePercent, &s.Volume, &s.MarketCap,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s on %s: %w", symbol, date.Format("2006-01-02"), contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return &s, nil
}

// GetHistory returns up to days recent snapshots for a symbol, oldest
// first.
func (r *SnapshotRepository) GetHistory(ctx context.Context, symbol string, days int) ([]*contracts.Snapshot, error) {
	query := `
		SELECT symbol, date, name, exchange, index_name, open, high, low, close,
		       previous_close, change, change_percent, volume, market_cap
		FROM tracker.snapshots
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, symbol, days)
	if err != nil {
		return nil, fmt.Errorf("query snapshot history: %w", err)
	}
	defer rows.Close()

	snapshots, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

// LatestDate returns the most recent trade date with data.
func (r *SnapshotRepository) LatestDate(ctx context.Context) (time.Time, error) {
	query := `SELECT MAX(date) FROM tracker.snapshots`

	var latest *time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("query latest date: %w", err)
	}
	if latest == nil {
		return time.Time{}, fmt.Errorf("no snapshots recorded: %w", contracts.ErrNotFound)
	}
	return *latest, nil
}

func scanSnapshots(rows pgx.Rows) ([]*contracts.Snapshot, error) {
	var snapshots []*contracts.Snapshot
	for rows.Next() {
		var s contracts.Snapshot
		if err := rows.Scan(
			&s.Symbol, &s.Date, &s.Name, &s.Exchange, &s.IndexName,
			&s.Open, &s.High, &s.Low, &s.Close,
			&s.PreviousClose, &s.Change, &s.ChangePercent, &s.Volume, &s.MarketCap,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	return snapshots, rows.Err()
}
