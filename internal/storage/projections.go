package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketday/tracker/internal/contracts"
)

// ProjectionRepository implements contracts.ProjectionRepository.
// Projections are keyed by symbol and the trade date of the run that
// produced them; the projection target date is a column, not the key.
type ProjectionRepository struct {
	pool *pgxpool.Pool
}

// NewProjectionRepository creates a projection repository.
func NewProjectionRepository(pool *pgxpool.Pool) *ProjectionRepository {
	return &ProjectionRepository{pool: pool}
}

// SaveBatch upserts one run's projections under its trade date.
func (r *ProjectionRepository) SaveBatch(ctx context.Context, date time.Time, projections []*contracts.Projection) error {
	if len(projections) == 0 {
		return nil
	}

	query := `
		INSERT INTO tracker.projections
			(symbol, date, name, current_price, target_low, target_mid, target_high,
			 expected_change_percent, recommendation, confidence, trend,
			 momentum_score, volatility_score, risk_level, reason,
			 projection_date, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (symbol, date) DO UPDATE SET
			name = EXCLUDED.name,
			current_price = EXCLUDED.current_price,
			target_low = EXCLUDED.target_low,
			target_mid = EXCLUDED.target_mid,
			target_high = EXCLUDED.target_high,
			expected_change_percent = EXCLUDED.expected_change_percent,
			recommendation = EXCLUDED.recommendation,
			confidence = EXCLUDED.confidence,
			trend = EXCLUDED.trend,
			momentum_score = EXCLUDED.momentum_score,
			volatility_score = EXCLUDED.volatility_score,
			risk_level = EXCLUDED.risk_level,
			reason = EXCLUDED.reason,
			projection_date = EXCLUDED.projection_date,
			generated_at = EXCLUDED.generated_at
	`

	batch := &pgx.Batch{}
	for _, p := range projections {
		batch.Queue(query,
			p.Symbol, date, p.Name, p.CurrentPrice, p.TargetLow, p.TargetMid, p.TargetHigh,
			p.ExpectedChangePercent, string(p.Recommendation), p.Confidence, string(p.Trend),
			p.MomentumScore, p.VolatilityScore, string(p.RiskLevel), p.Reason,
			p.ProjectionDate, p.GeneratedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range projections {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save projections: %w", err)
		}
	}
	return nil
}

// GetByDate retrieves all projections produced on a trade date.
func (r *ProjectionRepository) GetByDate(ctx context.Context, date time.Time) ([]*contracts.Projection, error) {
	query := `
		SELECT symbol, name, current_price, target_low, target_mid, target_high,
		       expected_change_percent, recommendation, confidence, trend,
		       momentum_score, volatility_score, risk_level, reason,
		       projection_date, generated_at
		FROM tracker.projections
		WHERE date = $1
		ORDER BY symbol ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query projections by date: %w", err)
	}
	defer rows.Close()

	return scanProjections(rows)
}

// GetBySymbolAndDate retrieves one symbol's projection for a trade date.
func (r *ProjectionRepository) GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*contracts.Projection, error) {
	query := `
		SELECT symbol, name, current_price, target_low, target_mid, target_high,
		       expected_change_percent, recommendation, confidence, trend,
		       momentum_score, volatility_score, risk_level, reason,
		       projection_date, generated_at
		FROM tracker.projections
		WHERE symbol = $1 AND date = $2
	`

	row := r.pool.QueryRow(ctx, query, symbol, date)
	p, err := scanProjection(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("projection %s on %s: %w", symbol, date.Format("2006-01-02"), contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query projection: %w", err)
	}
	return p, nil
}

// GetByRecommendation retrieves a trade date's projections carrying the
// given recommendation, highest confidence first.
func (r *ProjectionRepository) GetByRecommendation(ctx context.Context, date time.Time, rec contracts.Recommendation, limit int) ([]*contracts.Projection, error) {
	query := `
		SELECT symbol, name, current_price, target_low, target_mid, target_high,
		       expected_change_percent, recommendation, confidence, trend,
		       momentum_score, volatility_score, risk_level, reason,
		       projection_date, generated_at
		FROM tracker.projections
		WHERE date = $1 AND recommendation = $2
		ORDER BY confidence DESC, symbol ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, date, string(rec), limit)
	if err != nil {
		return nil, fmt.Errorf("query projections by recommendation: %w", err)
	}
	defer rows.Close()

	return scanProjections(rows)
}

func scanProjection(row pgx.Row) (*contracts.Projection, error) {
	var p contracts.Projection
	err := row.Scan(
		&p.Symbol, &p.Name, &p.CurrentPrice, &p.TargetLow, &p.TargetMid, &p.TargetHigh,
		&p.ExpectedChangePercent, &p.Recommendation, &p.Confidence, &p.Trend,
		&p.MomentumScore, &p.VolatilityScore, &p.RiskLevel, &p.Reason,
		&p.ProjectionDate, &p.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProjections(rows pgx.Rows) ([]*contracts.Projection, error) {
	var projections []*contracts.Projection
	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan projection: %w", err)
		}
		projections = append(projections, p)
	}
	return projections, rows.Err()
}
