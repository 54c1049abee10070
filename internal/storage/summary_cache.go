package storage

import (
	"context"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
	"github.com/marketday/tracker/pkg/redis"
)

// CachedSummaries layers a short-lived Redis cache over a summary
// repository. The dashboard re-reads the same document between runs;
// Save writes through so a fresh run replaces the cached copy at once.
// With Redis disabled every call passes straight to the inner
// repository.
type CachedSummaries struct {
	inner  contracts.SummaryRepository
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedSummaries wraps a summary repository with the cache.
func NewCachedSummaries(inner contracts.SummaryRepository, cache *redis.Cache, log *logger.Logger) *CachedSummaries {
	return &CachedSummaries{inner: inner, cache: cache, logger: log}
}

// Save persists the document and refreshes the cached copy.
func (r *CachedSummaries) Save(ctx context.Context, date time.Time, doc *contracts.SummaryDocument) error {
	if err := r.inner.Save(ctx, date, doc); err != nil {
		return err
	}

	key := redis.SummaryKey(date.Format("2006-01-02"))
	if err := r.cache.Set(ctx, key, doc, redis.TTLMedium); err != nil {
		r.logger.WithError(err).Debug("Summary cache write failed")
	}
	return nil
}

// GetByDate serves the document from cache when present, loading and
// caching it otherwise. Lookup failures are never cached.
func (r *CachedSummaries) GetByDate(ctx context.Context, date time.Time) (*contracts.SummaryDocument, error) {
	key := redis.SummaryKey(date.Format("2006-01-02"))

	var doc contracts.SummaryDocument
	err := r.cache.GetOrSet(ctx, key, &doc, redis.TTLMedium, func() (interface{}, error) {
		return r.inner.GetByDate(ctx, date)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AvailableDates passes through; the date list changes with every run.
func (r *CachedSummaries) AvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	return r.inner.AvailableDates(ctx, limit)
}
