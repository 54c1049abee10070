// Package fetcher orchestrates the screen-then-fetch pipeline across
// market indices. It reconciles a large symbol universe with a strict
// external call quota: cap the universe, screen it down with cheap light
// quotes, then full-fetch the survivors through a small staggered pool.
package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const (
	// Full fetches cost two API calls per symbol, so two workers is
	// already half the per-minute quota in the worst case.
	fetchWorkers = 2

	submitBatch     = 5
	submitPause     = 300 * time.Millisecond
	progressBatch   = 10
	completionBatch = 25
	completionPause = 5 * time.Second

	defaultUniverseCap        = 100
	defaultScreeningThreshold = 20
)

// Config bounds the per-index universe and the screening cutover.
type Config struct {
	// UniverseCap is the hard cap on symbols considered per index.
	UniverseCap int

	// ScreeningThreshold is the universe size at or below which
	// screening is skipped.
	ScreeningThreshold int
}

// Fetcher runs the daily fetch across configured indices.
type Fetcher struct {
	source contracts.SymbolSource
	client contracts.QuoteClient
	ranker contracts.SymbolRanker
	logger *logger.Logger

	universeCap        int
	screeningThreshold int
}

// New creates a fetcher. ranker may be nil to disable screening.
func New(source contracts.SymbolSource, client contracts.QuoteClient, ranker contracts.SymbolRanker, cfg Config, log *logger.Logger) *Fetcher {
	if cfg.UniverseCap <= 0 {
		cfg.UniverseCap = defaultUniverseCap
	}
	if cfg.ScreeningThreshold <= 0 {
		cfg.ScreeningThreshold = defaultScreeningThreshold
	}

	return &Fetcher{
		source:             source,
		client:             client,
		ranker:             ranker,
		logger:             log,
		universeCap:        cfg.UniverseCap,
		screeningThreshold: cfg.ScreeningThreshold,
	}
}

// fetchResult carries one symbol's outcome from a worker to the
// collector.
type fetchResult struct {
	symbol   string
	snapshot *contracts.Snapshot
	err      error
}

// FetchIndices runs the pipeline for every index and returns snapshots
// grouped by index name. A failing symbol is dropped, an index yielding
// nothing is logged and skipped, and only zero snapshots across all
// indices fails the operation (ErrNoData).
func (f *Fetcher) FetchIndices(ctx context.Context, indexNames []string) (map[string][]contracts.Snapshot, error) {
	allData := make(map[string][]contracts.Snapshot, len(indexNames))

	for _, indexName := range indexNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f.logger.WithField("index", indexName).Info("Processing index")
		snapshots, err := f.fetchIndex(ctx, indexName)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.WithError(err).WithField("index", indexName).Warn("Index fetch failed")
			continue
		}
		if snapshots == nil {
			continue
		}

		allData[indexName] = snapshots
		f.logger.WithFields(map[string]interface{}{
			"index": indexName,
			"count": len(snapshots),
		}).Info("Index fetched")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, snapshots := range allData {
		total += len(snapshots)
	}
	if total == 0 {
		return nil, contracts.ErrNoData
	}
	return allData, nil
}

// fetchIndex resolves, caps, optionally screens, and fetches one index.
// A nil, nil return means the index produced nothing usable.
func (f *Fetcher) fetchIndex(ctx context.Context, indexName string) ([]contracts.Snapshot, error) {
	symbols, err := f.source.Symbols(ctx, indexName)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		f.logger.WithField("index", indexName).Warn("No symbols resolved for index")
		return nil, nil
	}

	if len(symbols) > f.universeCap {
		f.logger.WithFields(map[string]interface{}{
			"index": indexName,
			"total": len(symbols),
			"cap":   f.universeCap,
		}).Info("Capping index universe")
		symbols = symbols[:f.universeCap]
	}

	if f.ranker != nil && len(symbols) > f.screeningThreshold {
		f.logger.WithFields(map[string]interface{}{
			"index":   indexName,
			"symbols": len(symbols),
		}).Info("Screening index universe")

		qualified, err := f.ranker.Rank(ctx, symbols)
		if err != nil {
			return nil, err
		}
		if len(qualified) == 0 {
			f.logger.WithField("index", indexName).Warn("Screening left no candidates")
			return nil, nil
		}

		f.logger.WithFields(map[string]interface{}{
			"index":     indexName,
			"qualified": len(qualified),
		}).Info("Selected qualified symbols for tracking")
		symbols = qualified
	}

	return f.fetchSymbols(ctx, indexName, symbols), nil
}

// fetchSymbols full-fetches a symbol set through the worker pool. The
// single collector loop owns the tallies and the result slice; workers
// only send fetchResults.
func (f *Fetcher) fetchSymbols(ctx context.Context, indexName string, symbols []string) []contracts.Snapshot {
	f.logger.WithFields(map[string]interface{}{
		"index":   indexName,
		"symbols": len(symbols),
		"workers": fetchWorkers,
	}).Info("Fetching index data")

	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan fetchResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < fetchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.fetchWorker(ctx, symbolCh, resultCh)
		}()
	}

	// Stagger submissions so a fresh pool cannot burst the quota.
feed:
	for i, symbol := range symbols {
		if i > 0 && i%submitBatch == 0 {
			if err := pause(ctx, submitPause); err != nil {
				break feed
			}
		}
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	snapshots := make([]contracts.Snapshot, 0, len(symbols))
	completed := 0
	failed := 0
	for result := range resultCh {
		completed++

		if result.err != nil {
			failed++
			f.logger.WithError(result.err).WithField("symbol", result.symbol).Debug("Symbol fetch failed")
		} else {
			snapshot := *result.snapshot
			snapshot.IndexName = indexName
			snapshots = append(snapshots, snapshot)
		}

		if completed%progressBatch == 0 {
			f.logger.WithFields(map[string]interface{}{
				"index":     indexName,
				"completed": completed,
				"total":     len(symbols),
				"failed":    failed,
			}).Info("Fetch progress")
		}
		if completed%completionBatch == 0 {
			if err := pause(ctx, completionPause); err != nil {
				break
			}
		}
	}

	f.logger.WithFields(map[string]interface{}{
		"index":   indexName,
		"fetched": len(snapshots),
		"failed":  failed,
	}).Info("Index fetch completed")

	return snapshots
}

func (f *Fetcher) fetchWorker(ctx context.Context, symbolCh <-chan string, resultCh chan<- fetchResult) {
	for symbol := range symbolCh {
		select {
		case <-ctx.Done():
			resultCh <- fetchResult{symbol: symbol, err: ctx.Err()}
			return
		default:
		}

		snapshot, err := f.client.FetchFull(ctx, symbol)
		resultCh <- fetchResult{symbol: symbol, snapshot: snapshot, err: err}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
