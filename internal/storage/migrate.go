package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the tracker schema. Every statement is
// idempotent so each process can apply them at startup without
// coordination.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS tracker`,

	`CREATE TABLE IF NOT EXISTS tracker.snapshots (
		symbol          TEXT NOT NULL,
		date            DATE NOT NULL,
		name            TEXT NOT NULL DEFAULT '',
		exchange        TEXT NOT NULL DEFAULT '',
		index_name      TEXT NOT NULL DEFAULT '',
		open            DOUBLE PRECISION NOT NULL,
		high            DOUBLE PRECISION NOT NULL,
		low             DOUBLE PRECISION NOT NULL,
		close           DOUBLE PRECISION NOT NULL,
		previous_close  DOUBLE PRECISION NOT NULL,
		change          DOUBLE PRECISION NOT NULL,
		change_percent  DOUBLE PRECISION NOT NULL,
		volume          BIGINT NOT NULL,
		market_cap      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, date)
	)`,

	`CREATE INDEX IF NOT EXISTS snapshots_date_idx
		ON tracker.snapshots (date)`,

	`CREATE TABLE IF NOT EXISTS tracker.projections (
		symbol                  TEXT NOT NULL,
		date                    DATE NOT NULL,
		name                    TEXT NOT NULL DEFAULT '',
		current_price           DOUBLE PRECISION NOT NULL,
		target_low              DOUBLE PRECISION NOT NULL,
		target_mid              DOUBLE PRECISION NOT NULL,
		target_high             DOUBLE PRECISION NOT NULL,
		expected_change_percent DOUBLE PRECISION NOT NULL,
		recommendation          TEXT NOT NULL,
		confidence              INTEGER NOT NULL,
		trend                   TEXT NOT NULL,
		momentum_score          DOUBLE PRECISION NOT NULL,
		volatility_score        DOUBLE PRECISION NOT NULL,
		risk_level              TEXT NOT NULL,
		reason                  TEXT NOT NULL DEFAULT '',
		projection_date         DATE NOT NULL,
		generated_at            TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, date)
	)`,

	`CREATE INDEX IF NOT EXISTS projections_date_recommendation_idx
		ON tracker.projections (date, recommendation)`,

	`CREATE TABLE IF NOT EXISTS tracker.run_summaries (
		date       DATE PRIMARY KEY,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS tracker.runs (
		id             BIGSERIAL PRIMARY KEY,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ,
		status         TEXT NOT NULL,
		total_symbols  INTEGER NOT NULL DEFAULT 0,
		failed_symbols INTEGER NOT NULL DEFAULT 0,
		error          TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS runs_started_at_idx
		ON tracker.runs (started_at DESC)`,
}

// Migrate creates the tracker schema and tables when absent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
