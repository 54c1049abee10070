package contracts

import (
	"context"
	"time"
)

// SnapshotRepository persists and queries daily snapshots
type SnapshotRepository interface {
	SaveBatch(ctx context.Context, snapshots []*Snapshot) error
	GetByDate(ctx context.Context, date time.Time) ([]*Snapshot, error)
	GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*Snapshot, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]*Snapshot, error)
	LatestDate(ctx context.Context) (time.Time, error)
}

// ProjectionRepository persists and queries per-symbol projections,
// keyed by symbol and the trade date of the run that produced them
type ProjectionRepository interface {
	SaveBatch(ctx context.Context, date time.Time, projections []*Projection) error
	GetByDate(ctx context.Context, date time.Time) ([]*Projection, error)
	GetBySymbolAndDate(ctx context.Context, symbol string, date time.Time) (*Projection, error)
	GetByRecommendation(ctx context.Context, date time.Time, rec Recommendation, limit int) ([]*Projection, error)
}

// SummaryDocument is the combined per-run summary persisted as one
// document: market analysis, index comparison, prose narrative, and the
// projection set with its aggregate.
type SummaryDocument struct {
	Analysis          *MarketAnalysis        `json:"analysis"`
	IndexComparison   map[string]IndexStats  `json:"index_comparison"`
	Narrative         string                 `json:"narrative,omitempty"`
	Projections       map[string]*Projection `json:"projections,omitempty"`
	ProjectionSummary *ProjectionSummary     `json:"projection_summary,omitempty"`
}

// SummaryRepository persists and queries run summary documents
type SummaryRepository interface {
	Save(ctx context.Context, date time.Time, doc *SummaryDocument) error
	GetByDate(ctx context.Context, date time.Time) (*SummaryDocument, error)
	AvailableDates(ctx context.Context, limit int) ([]time.Time, error)
}

// Run is the audit record of one tracking run
type Run struct {
	ID            int64        `json:"id"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	Status        RefreshState `json:"status"`
	TotalSymbols  int          `json:"total_symbols"`
	FailedSymbols int          `json:"failed_symbols"`
	Error         string       `json:"error,omitempty"`
}

// RunRepository records the run audit trail
type RunRepository interface {
	Create(ctx context.Context, startedAt time.Time) (int64, error)
	Finish(ctx context.Context, run *Run) error
	Recent(ctx context.Context, limit int) ([]*Run, error)
}
