package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marketday/tracker/internal/alerts"
	"github.com/marketday/tracker/internal/analyzer"
	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/internal/external/finnhub"
	"github.com/marketday/tracker/internal/external/indexsource"
	"github.com/marketday/tracker/internal/fetcher"
	"github.com/marketday/tracker/internal/projector"
	"github.com/marketday/tracker/internal/ratelimit"
	"github.com/marketday/tracker/internal/refresh"
	"github.com/marketday/tracker/internal/screener"
	"github.com/marketday/tracker/internal/storage"
	"github.com/marketday/tracker/internal/tracker"
	"github.com/marketday/tracker/pkg/config"
	"github.com/marketday/tracker/pkg/database"
	"github.com/marketday/tracker/pkg/logger"
	"github.com/marketday/tracker/pkg/redis"
)

// pipelineOptions control how much of the stack a command wires.
type pipelineOptions struct {
	// requireDB fails the wiring when DATABASE_URL is unset. The api and
	// scheduler commands need the store; track can run export-only.
	requireDB bool

	// noScreening drops the ranking stage, so every cached constituent
	// is fetched up to the universe cap.
	noScreening bool

	// indices overrides the configured index list when non-empty.
	indices []string

	// exportDir re-points file exports away from DATA_DIR when set.
	exportDir string
}

// pipeline is the wired tracking stack shared by the track, api and
// scheduler commands.
type pipeline struct {
	cfg *config.Config
	log *logger.Logger

	db  *database.DB
	rds *redis.Client

	source     *indexsource.Source
	workflow   *tracker.Workflow
	supervisor *refresh.Supervisor

	// nil without a database
	snapshots   *storage.SnapshotRepository
	projections *storage.ProjectionRepository
	summaries   contracts.SummaryRepository
}

// Close releases the pipeline's connections.
func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
	if p.rds != nil {
		_ = p.rds.Close()
	}
}

// loadConfig loads the environment config and applies the global CLI
// flags plus the optional config/exchanges.json index override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	if indices, ok := config.IndicesFromFile(cfg.Tracker.ConfigDir); ok {
		cfg.Tracker.Indices = indices
	}

	return cfg, nil
}

// initPipeline wires the full tracking stack from config.
func initPipeline(opts pipelineOptions) (*pipeline, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if len(opts.indices) > 0 {
		cfg.Tracker.Indices = opts.indices
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database (optional for export-only runs)
	var db *database.DB
	if opts.requireDB || cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := storage.Migrate(context.Background(), db.Pool); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	// 4. Connect to Redis (no-op client when disabled)
	rds, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Create the Finnhub client behind the rate limiter
	limiter := ratelimit.New(cfg.Finnhub.CallsPerMinute)
	quotes := finnhub.NewClient(cfg.Finnhub, limiter, log)

	// 6. Create the index constituent source
	source := newConstituentSource(cfg, rds, log)

	// 7. Create the screener. CAP_ESTIMATE_MULTIPLIER overrides the
	// filter file when set.
	var ranker contracts.SymbolRanker
	if !opts.noScreening {
		filters := screener.LoadFilters(filepath.Join(cfg.Tracker.ConfigDir, "screener_filters.json"), log)
		if m := cfg.Tracker.CapEstimateMultiplier; m > 0 {
			filters.CapEstimateMultiplier = m
		}
		ranker = screener.New(filters, quotes, log)
	}

	// 8. Create the fetcher
	fetch := fetcher.New(source, quotes, ranker, fetcher.Config{
		UniverseCap:        cfg.Tracker.UniverseCap,
		ScreeningThreshold: cfg.Tracker.ScreeningThreshold,
	}, log)

	// 9. Create the analyzer and projector
	analyze := analyzer.New(log)
	project := projector.New(log.Zerolog())

	// 10. Load alert rules (absent file disables alerting)
	alertEngine, err := alerts.Load(filepath.Join(cfg.Tracker.ConfigDir, "alerts.json"), cfg.Tracker.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("load alert rules: %w", err)
	}

	// 11. Create the persistence sinks
	exportDir := cfg.Tracker.DataDir
	if opts.exportDir != "" {
		exportDir = opts.exportDir
	}
	p := &pipeline{cfg: cfg, log: log, db: db, rds: rds, source: source}
	sinks := tracker.Sinks{
		Exporter: storage.NewExporter(exportDir, log),
	}
	if db != nil {
		p.snapshots = storage.NewSnapshotRepository(db.Pool)
		p.projections = storage.NewProjectionRepository(db.Pool)
		p.summaries = storage.NewSummaryRepository(db.Pool)
		if rds.Enabled() {
			// Dashboard reads hit the latest summary repeatedly; runs
			// write through so the cached copy never lags a refresh.
			p.summaries = storage.NewCachedSummaries(p.summaries, redis.NewCache(rds, "tracker", log), log)
		}
		sinks.Snapshots = p.snapshots
		sinks.Projections = p.projections
		sinks.Summaries = p.summaries
		sinks.Runs = storage.NewRunRepository(db.Pool)
	}

	// 12. Create the workflow and its refresh supervisor
	p.workflow = tracker.New(fetch, analyze, project, alertEngine, sinks, cfg.Tracker.Indices, log)
	p.supervisor = refresh.New(p.workflow.Runner(), cfg.Tracker.RefreshTimeout, log)

	return p, nil
}

// newConstituentSource builds the index source over the configured
// cache backend: Redis when enabled, files under CACHE_DIR otherwise.
func newConstituentSource(cfg *config.Config, rds *redis.Client, log *logger.Logger) *indexsource.Source {
	var cache indexsource.Cache
	if rds.Enabled() {
		cache = indexsource.NewRedisCache(redis.NewCache(rds, "tracker", log), log)
	} else {
		cache = indexsource.NewFileCache(cfg.Tracker.CacheDir, log)
	}
	return indexsource.NewSource(cache, log)
}
