package jobs

import (
	"context"
	"fmt"

	"github.com/marketday/tracker/pkg/logger"
)

// ConstituentRefresher re-resolves an index constituent list, writing
// the result through to the cache.
type ConstituentRefresher interface {
	Refresh(ctx context.Context, indexName string) ([]string, error)
}

// CacheWarmupJob re-scrapes the configured index constituent lists over
// the weekend so the week's first tracking run starts from a fresh
// cache.
type CacheWarmupJob struct {
	source  ConstituentRefresher
	indices []string
	logger  *logger.Logger
}

// NewCacheWarmupJob creates the warmup job for the given indices.
func NewCacheWarmupJob(source ConstituentRefresher, indices []string, log *logger.Logger) *CacheWarmupJob {
	return &CacheWarmupJob{
		source:  source,
		indices: indices,
		logger:  log,
	}
}

// Name returns the job name.
func (j *CacheWarmupJob) Name() string {
	return "cache_warmup"
}

// Schedule returns the cron schedule (Sunday at 10 PM).
func (j *CacheWarmupJob) Schedule() string {
	return "0 0 22 * * SUN"
}

// Run refreshes every configured index. Individual failures are logged
// and the remaining indices still run; the job fails only when no index
// could be refreshed.
func (j *CacheWarmupJob) Run(ctx context.Context) error {
	j.logger.WithField("indices", len(j.indices)).Info("Starting constituent cache warmup")

	var failed int
	for _, index := range j.indices {
		symbols, err := j.source.Refresh(ctx, index)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			j.logger.WithError(err).WithField("index", index).Warn("Constituent refresh failed")
			continue
		}

		j.logger.WithFields(map[string]interface{}{
			"index": index,
			"count": len(symbols),
		}).Info("Constituent cache warmed")
	}

	if failed > 0 && failed == len(j.indices) {
		return fmt.Errorf("all %d constituent refreshes failed", failed)
	}

	j.logger.Info("Constituent cache warmup completed")
	return nil
}
