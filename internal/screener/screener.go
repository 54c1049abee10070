// Package screener qualifies symbols for full tracking by scoring
// liquidity, movement, price range, and size from one light quote each.
package screener

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const (
	// Two workers keep light fetches from bursting past the shared
	// 60-calls/minute quota.
	screenWorkers = 2

	submitBatch     = 10
	submitPause     = 200 * time.Millisecond
	completionBatch = 50
	completionPause = 5 * time.Second

	// A score of 100 needs $100B and up.
	largeCapMillions = 100_000
)

// Screener scores and ranks candidate symbols. It implements
// contracts.SymbolRanker.
type Screener struct {
	filters Filters
	client  contracts.QuoteClient
	logger  *logger.Logger
}

// New creates a screener over the given quote client.
func New(filters Filters, client contracts.QuoteClient, log *logger.Logger) *Screener {
	return &Screener{
		filters: filters,
		client:  client,
		logger:  log,
	}
}

// Rank screens symbols and returns at most top_n of them, ordered by
// descending score.
func (s *Screener) Rank(ctx context.Context, symbols []string) ([]string, error) {
	candidates, err := s.Screen(ctx, symbols)
	if err != nil {
		return nil, err
	}

	ranked := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ranked = append(ranked, candidate.Symbol)
	}
	return ranked, nil
}

// Screen fetches one light quote per symbol through a small worker pool,
// scores each, and returns the qualified candidates sorted by descending
// score, cut to top_n. Fetch failures drop the symbol, never the batch.
func (s *Screener) Screen(ctx context.Context, symbols []string) ([]contracts.ScreeningCandidate, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	s.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"workers": screenWorkers,
	}).Info("Screening symbols")

	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan *contracts.ScreeningCandidate, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < screenWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.screenWorker(ctx, symbolCh, resultCh)
		}()
	}

	// Stagger submissions so the pool cannot burst the quota on start.
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

	var qualified []contracts.ScreeningCandidate
	completed := 0
	for candidate := range resultCh {
		completed++
		if completed%completionBatch == 0 {
			s.logger.Infof("Screening progress: %d/%d", completed, len(symbols))
			if err := pause(ctx, completionPause); err != nil {
				break
			}
		}
		if candidate != nil && candidate.Score > 0 {
			qualified = append(qualified, *candidate)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].Score > qualified[j].Score
	})

	if s.filters.TopN > 0 && len(qualified) > s.filters.TopN {
		qualified = qualified[:s.filters.TopN]
	}

	s.logger.WithFields(map[string]interface{}{
		"screened":  len(symbols),
		"qualified": len(qualified),
	}).Info("Screening completed")

	return qualified, nil
}

func (s *Screener) screenWorker(ctx context.Context, symbolCh <-chan string, resultCh chan<- *contracts.ScreeningCandidate) {
	for symbol := range symbolCh {
		select {
		case <-ctx.Done():
			resultCh <- nil
			return
		default:
		}

		snap, err := s.client.FetchLight(ctx, symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Debug("Screening fetch failed")
			resultCh <- nil
			continue
		}

		resultCh <- &contracts.ScreeningCandidate{
			Symbol:        snap.Symbol,
			Close:         snap.Close,
			Volume:        snap.Volume,
			ChangePercent: snap.ChangePercent,
			MarketCap:     snap.MarketCap,
			Score:         s.Score(snap),
		}
	}
}

// Score computes the 0-100 screening score for one candidate. A zero
// sub-score means the candidate failed that threshold filter and zeroes
// the total: threshold failures eliminate, they do not just rank low.
func (s *Screener) Score(snap *contracts.Snapshot) float64 {
	volumeScore := s.scoreVolume(snap.Volume)
	changeScore := s.scorePriceChange(snap.ChangePercent)
	rangeScore := s.scorePriceRange(snap.Close)

	marketCap := snap.MarketCap
	if marketCap == 0 {
		// Light quotes carry no market cap; estimate from turnover.
		marketCap = snap.Close * float64(snap.Volume) * s.filters.CapEstimateMultiplier / 1e6
	}
	capScore := s.scoreMarketCap(marketCap)

	if volumeScore == 0 || changeScore == 0 || rangeScore == 0 || capScore == 0 {
		return 0
	}

	w := s.filters.Weights
	return volumeScore*w.Volume +
		changeScore*w.PriceChange +
		rangeScore*w.PriceRange +
		capScore*w.MarketCap
}

// scoreVolume: 50 points at the threshold scaling linearly to 100 at 10M
// shares.
func (s *Screener) scoreVolume(volume int64) float64 {
	threshold := s.filters.VolumeThreshold
	if volume < threshold {
		return 0
	}
	if volume >= 10_000_000 {
		return 100
	}
	ratio := float64(volume-threshold) / float64(10_000_000-threshold)
	return 50 + ratio*50
}

// scorePriceChange: absolute movement, 50 points at the minimum change
// scaling linearly to 100 at 10%.
func (s *Screener) scorePriceChange(changePct float64) float64 {
	minChange := s.filters.MinDailyChangePct
	absChange := math.Abs(changePct)
	if absChange < minChange {
		return 0
	}
	if absChange >= 10 {
		return 100
	}
	ratio := (absChange - minChange) / (10 - minChange)
	return 50 + ratio*50
}

// scorePriceRange: full points inside [price_min, price_max]; penny
// stocks fade to 0, expensive ones keep at least 50 up to twice the max.
func (s *Screener) scorePriceRange(price float64) float64 {
	minPrice := s.filters.PriceMin
	maxPrice := s.filters.PriceMax

	switch {
	case price >= minPrice && price <= maxPrice:
		return 100
	case price < minPrice:
		return math.Max(0, price/minPrice*50)
	case price <= maxPrice*2:
		ratio := 1 - (price-maxPrice)/maxPrice
		return math.Max(50, ratio*100)
	default:
		return 0
	}
}

// scoreMarketCap: logarithmic between the minimum (50 points) and $100B
// (100 points). Values are millions of USD.
func (s *Screener) scoreMarketCap(capMillions float64) float64 {
	minCap := s.filters.MarketCapMin
	if capMillions < minCap {
		return 0
	}
	if capMillions >= largeCapMillions {
		return 100
	}
	ratio := math.Log10(capMillions/minCap) / math.Log10(100)
	return 50 + math.Min(50, ratio*50)
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
