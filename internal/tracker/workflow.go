// Package tracker orchestrates one daily tracking run end to end:
// fetch the configured indices, analyze the day, project every
// snapshot, evaluate alerts, and persist the results. Only the fetch
// can fail the run; every later stage degrades and is logged.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/marketday/tracker/internal/alerts"
	"github.com/marketday/tracker/internal/analyzer"
	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/internal/projector"
	"github.com/marketday/tracker/internal/refresh"
	"github.com/marketday/tracker/internal/storage"
	"github.com/marketday/tracker/pkg/logger"
)

// finishTimeout bounds the audit write after a run whose own context
// may already be dead.
const finishTimeout = 5 * time.Second

// IndexFetcher pulls one day of snapshots for each index.
type IndexFetcher interface {
	FetchIndices(ctx context.Context, indexNames []string) (map[string][]contracts.Snapshot, error)
}

// Sinks are the persistence targets of a run. Nil fields are skipped;
// a failing sink is logged and the run carries on.
type Sinks struct {
	Snapshots   contracts.SnapshotRepository
	Projections contracts.ProjectionRepository
	Summaries   contracts.SummaryRepository
	Runs        contracts.RunRepository
	Exporter    *storage.Exporter
}

// RunResult carries everything one tracking run produced.
type RunResult struct {
	Date         time.Time
	IndexCounts  map[string]int
	TotalSymbols int
	Analysis     contracts.MarketAnalysis
	Narrative    string
	Projections  []contracts.Projection
	Summary      contracts.ProjectionSummary
	Events       []alerts.Event
	Duration     time.Duration
	Status       contracts.RefreshState
}

// Workflow wires the pipeline stages into one run.
type Workflow struct {
	fetcher     IndexFetcher
	analyzer    *analyzer.Analyzer
	projector   *projector.Projector
	alertEngine *alerts.Engine
	sinks       Sinks

	indices []string
	logger  *logger.Logger
	now     func() time.Time
}

// New creates a workflow. alertEngine may be nil when no alert rules
// are configured.
func New(
	fetcher IndexFetcher,
	analyzer *analyzer.Analyzer,
	projector *projector.Projector,
	alertEngine *alerts.Engine,
	sinks Sinks,
	indices []string,
	log *logger.Logger,
) *Workflow {
	return &Workflow{
		fetcher:     fetcher,
		analyzer:    analyzer,
		projector:   projector,
		alertEngine: alertEngine,
		sinks:       sinks,
		indices:     indices,
		logger:      log,
		now:         time.Now,
	}
}

// Runner adapts the workflow to the refresh supervisor.
func (w *Workflow) Runner() refresh.Runner {
	return refresh.RunnerFunc(func(ctx context.Context, report refresh.ProgressFunc) error {
		_, err := w.Run(ctx, report)
		return err
	})
}

// Run executes one tracking run. report may be nil; when set it
// receives a progress update per stage. The returned result is
// populated as far as the run got, even on error.
func (w *Workflow) Run(ctx context.Context, report refresh.ProgressFunc) (*RunResult, error) {
	startedAt := w.now()
	runID := w.beginRun(ctx, startedAt)

	w.logger.WithField("indices", len(w.indices)).Info("Starting tracking run")

	result := &RunResult{Status: contracts.RefreshError}

	notify(report, contracts.RefreshProgress{Stage: "fetching", TotalIndices: len(w.indices)})
	byIndex, err := w.fetcher.FetchIndices(ctx, w.indices)
	if err != nil {
		result.Status = runState(err)
		result.Duration = w.now().Sub(startedAt)
		w.finishRun(runID, startedAt, result, err)
		return result, err
	}

	all, counts := flatten(byIndex, w.indices)
	result.Date = tradeDate(all, startedAt)
	result.IndexCounts = counts
	result.TotalSymbols = len(all)

	notify(report, contracts.RefreshProgress{
		Stage:          "analyzing",
		IndicesDone:    len(counts),
		TotalIndices:   len(w.indices),
		SymbolsFetched: len(all),
	})
	result.Analysis = w.analyzer.AnalyzeDaily(all)
	result.Narrative = w.analyzer.Narrative(result.Analysis, result.Analysis.IndexStats)

	notify(report, contracts.RefreshProgress{
		Stage:          "projecting",
		IndicesDone:    len(counts),
		TotalIndices:   len(w.indices),
		SymbolsFetched: len(all),
	})
	projections, err := w.projector.ProjectAll(ctx, all)
	if err != nil {
		result.Status = runState(err)
		result.Duration = w.now().Sub(startedAt)
		w.finishRun(runID, startedAt, result, err)
		return result, err
	}
	result.Projections = projections
	result.Summary = w.projector.Summarize(projections)

	notify(report, contracts.RefreshProgress{
		Stage:          "alerts",
		IndicesDone:    len(counts),
		TotalIndices:   len(w.indices),
		SymbolsFetched: len(all),
	})
	if w.alertEngine != nil {
		result.Events = w.alertEngine.Evaluate(all)
	}

	notify(report, contracts.RefreshProgress{
		Stage:          "persisting",
		IndicesDone:    len(counts),
		TotalIndices:   len(w.indices),
		SymbolsFetched: len(all),
	})
	doc := buildDocument(&result.Analysis, result.Narrative, projections, &result.Summary)
	w.persist(ctx, result.Date, all, projections, doc)

	result.Status = contracts.RefreshSuccess
	result.Duration = w.now().Sub(startedAt)
	w.finishRun(runID, startedAt, result, nil)

	w.logger.WithFields(map[string]interface{}{
		"symbols":     len(all),
		"projections": len(projections),
		"alerts":      len(result.Events),
		"duration":    result.Duration.String(),
	}).Info("Tracking run completed")

	return result, nil
}

// flatten joins the per-index snapshot groups in configured index
// order, so downstream ranking sees a stable sequence run to run.
func flatten(byIndex map[string][]contracts.Snapshot, indices []string) ([]contracts.Snapshot, map[string]int) {
	var all []contracts.Snapshot
	counts := make(map[string]int, len(byIndex))

	for _, indexName := range indices {
		snapshots := byIndex[indexName]
		if len(snapshots) == 0 {
			continue
		}
		all = append(all, snapshots...)
		counts[indexName] = len(snapshots)
	}
	return all, counts
}

// tradeDate takes the trade date from the fetched data itself, falling
// back to the run's start day.
func tradeDate(snapshots []contracts.Snapshot, startedAt time.Time) time.Time {
	for _, s := range snapshots {
		if !s.Date.IsZero() {
			return contracts.DateOnly(s.Date)
		}
	}
	return contracts.DateOnly(startedAt)
}

// buildDocument assembles the summary document persisted for the day.
func buildDocument(analysis *contracts.MarketAnalysis, narrative string, projections []contracts.Projection, summary *contracts.ProjectionSummary) *contracts.SummaryDocument {
	doc := &contracts.SummaryDocument{
		Analysis:        analysis,
		IndexComparison: analysis.IndexStats,
		Narrative:       narrative,
	}

	if len(projections) > 0 {
		bySymbol := make(map[string]*contracts.Projection, len(projections))
		for i := range projections {
			bySymbol[projections[i].Symbol] = &projections[i]
		}
		doc.Projections = bySymbol
		doc.ProjectionSummary = summary
	}
	return doc
}

// persist writes the run to every configured sink. Each target fails
// independently with a logged warning.
func (w *Workflow) persist(ctx context.Context, date time.Time, snapshots []contracts.Snapshot, projections []contracts.Projection, doc *contracts.SummaryDocument) {
	if w.sinks.Snapshots != nil {
		batch := make([]*contracts.Snapshot, len(snapshots))
		for i := range snapshots {
			batch[i] = &snapshots[i]
		}
		if err := w.sinks.Snapshots.SaveBatch(ctx, batch); err != nil {
			w.logger.WithError(err).Warn("Could not save snapshots")
		}
	}

	if w.sinks.Projections != nil && len(projections) > 0 {
		batch := make([]*contracts.Projection, len(projections))
		for i := range projections {
			batch[i] = &projections[i]
		}
		if err := w.sinks.Projections.SaveBatch(ctx, date, batch); err != nil {
			w.logger.WithError(err).Warn("Could not save projections")
		}
	}

	if w.sinks.Summaries != nil {
		if err := w.sinks.Summaries.Save(ctx, date, doc); err != nil {
			w.logger.WithError(err).Warn("Could not save summary")
		}
	}

	if w.sinks.Exporter != nil {
		if _, err := w.sinks.Exporter.SaveDailyCSV(snapshots, date); err != nil {
			w.logger.WithError(err).Warn("Could not export daily CSV")
		}
		if _, err := w.sinks.Exporter.SaveProjections(projections, date); err != nil {
			w.logger.WithError(err).Warn("Could not export projections")
		}
		if _, err := w.sinks.Exporter.SaveSummaryJSON(doc, date); err != nil {
			w.logger.WithError(err).Warn("Could not export summary")
		}
	}
}

// beginRun opens the audit row for this run. Returns 0 when the run
// repository is missing or unavailable.
func (w *Workflow) beginRun(ctx context.Context, startedAt time.Time) int64 {
	if w.sinks.Runs == nil {
		return 0
	}

	id, err := w.sinks.Runs.Create(ctx, startedAt)
	if err != nil {
		w.logger.WithError(err).Warn("Could not record run start")
		return 0
	}
	return id
}

// finishRun closes the audit row. The run context may already be dead
// here, so the write gets its own deadline.
func (w *Workflow) finishRun(id int64, startedAt time.Time, result *RunResult, runErr error) {
	if w.sinks.Runs == nil || id == 0 {
		return
	}

	finishedAt := w.now()
	run := &contracts.Run{
		ID:         id,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
		Status:     result.Status,
		// Symbols fetched without a usable close never reach a
		// projection; the audit row counts them as failed.
		TotalSymbols:  result.TotalSymbols,
		FailedSymbols: result.TotalSymbols - len(result.Projections),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if err := w.sinks.Runs.Finish(ctx, run); err != nil {
		w.logger.WithError(err).Warn("Could not record run finish")
	}
}

// runState maps a run error to the audit state recorded for it, the
// same way the refresh supervisor classifies its outcome.
func runState(err error) contracts.RefreshState {
	switch {
	case err == nil:
		return contracts.RefreshSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return contracts.RefreshTimeout
	default:
		return contracts.RefreshError
	}
}

func notify(report refresh.ProgressFunc, progress contracts.RefreshProgress) {
	if report != nil {
		report(progress)
	}
}
