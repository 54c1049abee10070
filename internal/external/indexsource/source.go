// Package indexsource resolves the constituent symbols of major US
// market indices. Lists come from a cache when fresh, otherwise from the
// Wikipedia constituent tables, with a small static list as the last
// resort so a tracking run never starts empty-handed.
package indexsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/marketday/tracker/pkg/httputil"
	"github.com/marketday/tracker/pkg/logger"
)

// Canonical index names.
const (
	SP500     = "S&P 500"
	Nasdaq100 = "NASDAQ-100"
	DowJones  = "Dow Jones"
)

// indexSpec describes one supported index. floor is the minimum count a
// scraped list must reach before it is trusted.
type indexSpec struct {
	pageURL  string
	floor    int
	fallback []string
}

var specs = map[string]indexSpec{
	SP500: {
		pageURL:  "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies",
		floor:    401,
		fallback: []string{"AAPL", "MSFT", "AMZN", "NVDA", "GOOGL", "META", "TSLA", "BRK.B", "V", "UNH"},
	},
	Nasdaq100: {
		pageURL:  "https://en.wikipedia.org/wiki/Nasdaq-100",
		floor:    91,
		fallback: []string{"AAPL", "MSFT", "AMZN", "NVDA", "GOOGL", "META", "TSLA", "AVGO", "COST", "NFLX"},
	},
	DowJones: {
		pageURL:  "https://en.wikipedia.org/wiki/Dow_Jones_Industrial_Average",
		floor:    30,
		fallback: []string{"AAPL", "MSFT", "UNH", "GS", "HD", "CAT", "MCD", "V", "HON", "TRV"},
	},
}

// Cache stores resolved constituent lists between runs.
type Cache interface {
	Load(ctx context.Context, indexName string) ([]string, bool)
	Save(ctx context.Context, indexName string, symbols []string)
}

// Source resolves index constituents. It implements
// contracts.SymbolSource.
type Source struct {
	httpClient *httputil.Client
	cache      Cache
	limiter    *rate.Limiter
	logger     *logger.Logger

	// pageOverrides redirects constituent pages in tests.
	pageOverrides map[string]string
}

// NewSource creates a constituent source. cache may be nil to skip
// caching entirely. Page fetches are paced to one per second.
func NewSource(cache Cache, log *logger.Logger) *Source {
	return &Source{
		httpClient: httputil.New(log).WithRetry(2, 1*time.Second),
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     log,
	}
}

// Canonicalize maps loose index spellings to their canonical names.
// Unknown names map to "".
func Canonicalize(indexName string) string {
	upper := strings.ToUpper(indexName)
	switch {
	case strings.Contains(upper, "S&P"), strings.Contains(upper, "SP500"), strings.Contains(upper, "SP 500"):
		return SP500
	case strings.Contains(upper, "NASDAQ") && strings.Contains(upper, "100"):
		return Nasdaq100
	case strings.Contains(upper, "DOW"), strings.Contains(upper, "DJIA"):
		return DowJones
	default:
		return ""
	}
}

// Symbols resolves the constituent list for an index. Resolution order:
// cache, Wikipedia scrape (floor-checked, written back to the cache),
// static fallback. Unknown indices resolve to an empty list.
func (s *Source) Symbols(ctx context.Context, indexName string) ([]string, error) {
	canonical := Canonicalize(indexName)
	if canonical == "" {
		s.logger.WithField("index", indexName).Warn("Unknown index")
		return nil, nil
	}
	spec := specs[canonical]

	if s.cache != nil {
		if symbols, ok := s.cache.Load(ctx, canonical); ok && len(symbols) > 0 {
			s.logger.WithFields(map[string]interface{}{
				"index": canonical,
				"count": len(symbols),
			}).Debug("Loaded index constituents from cache")
			return symbols, nil
		}
	}

	pageURL := spec.pageURL
	if override, ok := s.pageOverrides[canonical]; ok {
		pageURL = override
	}

	symbols, err := s.scrape(ctx, canonical, pageURL)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.WithError(err).WithField("index", canonical).Warn("Constituent scrape failed")
	case len(symbols) < spec.floor:
		s.logger.WithFields(map[string]interface{}{
			"index": canonical,
			"count": len(symbols),
			"floor": spec.floor,
		}).Warn("Scraped constituent list failed sanity check")
	default:
		if s.cache != nil {
			s.cache.Save(ctx, canonical, symbols)
		}
		s.logger.WithFields(map[string]interface{}{
			"index": canonical,
			"count": len(symbols),
		}).Info("Fetched index constituents")
		return symbols, nil
	}

	s.logger.WithField("index", canonical).Warn("Using minimal fallback list")
	return spec.fallback, nil
}

// Refresh re-scrapes an index constituent list and rewrites the cache,
// ignoring any cached copy. Unlike Symbols it never falls back to the
// static list: a failed or suspect scrape comes back as an error.
func (s *Source) Refresh(ctx context.Context, indexName string) ([]string, error) {
	canonical := Canonicalize(indexName)
	if canonical == "" {
		return nil, fmt.Errorf("unknown index %q", indexName)
	}
	spec := specs[canonical]

	pageURL := spec.pageURL
	if override, ok := s.pageOverrides[canonical]; ok {
		pageURL = override
	}

	symbols, err := s.scrape(ctx, canonical, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s constituents: %w", canonical, err)
	}
	if len(symbols) < spec.floor {
		return nil, fmt.Errorf("%s constituent list failed sanity check: got %d symbols, floor is %d", canonical, len(symbols), spec.floor)
	}

	if s.cache != nil {
		s.cache.Save(ctx, canonical, symbols)
	}
	s.logger.WithFields(map[string]interface{}{
		"index": canonical,
		"count": len(symbols),
	}).Info("Refreshed index constituents")
	return symbols, nil
}
