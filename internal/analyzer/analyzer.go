// Package analyzer computes market-level statistics from a day's
// snapshots: headline counts, top movers, volume leaders, per-index
// breakdowns, and a short template narrative. Pure computation, no I/O.
package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const topCount = 5

// Analyzer derives the daily market analysis from snapshots.
type Analyzer struct {
	logger *logger.Logger
	now    func() time.Time
}

// New creates an analyzer.
func New(log *logger.Logger) *Analyzer {
	return &Analyzer{
		logger: log,
		now:    time.Now,
	}
}

// AnalyzeDaily summarizes one day's snapshots. Empty input yields an
// empty analysis.
func (a *Analyzer) AnalyzeDaily(snapshots []contracts.Snapshot) contracts.MarketAnalysis {
	if len(snapshots) == 0 {
		return contracts.MarketAnalysis{}
	}

	stats := contracts.MarketStats{TotalStocks: len(snapshots)}
	sum := 0.0
	maxChange := snapshots[0].ChangePercent
	minChange := snapshots[0].ChangePercent

	byIndex := make(map[string][]contracts.Snapshot)
	for _, snap := range snapshots {
		switch {
		case snap.ChangePercent > 0:
			stats.Gainers++
		case snap.ChangePercent < 0:
			stats.Losers++
		default:
			stats.Unchanged++
		}

		sum += snap.ChangePercent
		if snap.ChangePercent > maxChange {
			maxChange = snap.ChangePercent
		}
		if snap.ChangePercent < minChange {
			minChange = snap.ChangePercent
		}

		if snap.IndexName != "" {
			byIndex[snap.IndexName] = append(byIndex[snap.IndexName], snap)
		}
	}

	stats.AverageChangePercent = round2(sum / float64(len(snapshots)))
	stats.MaxChangePercent = round2(maxChange)
	stats.MinChangePercent = round2(minChange)

	analysis := contracts.MarketAnalysis{
		Date:       contracts.DateOnly(a.now()),
		Summary:    stats,
		TopGainers: rankMovers(snapshots, func(x, y contracts.Snapshot) bool { return x.ChangePercent > y.ChangePercent }),
		TopLosers:  rankMovers(snapshots, func(x, y contracts.Snapshot) bool { return x.ChangePercent < y.ChangePercent }),
		TopVolume:  rankVolume(snapshots),
		IndexStats: a.CompareIndices(byIndex),
	}

	a.logger.WithFields(map[string]interface{}{
		"stocks":  stats.TotalStocks,
		"gainers": stats.Gainers,
		"losers":  stats.Losers,
	}).Info("Daily analysis completed")

	return analysis
}

// CompareIndices computes per-index statistics. Indices without data are
// left out.
func (a *Analyzer) CompareIndices(byIndex map[string][]contracts.Snapshot) map[string]contracts.IndexStats {
	comparison := make(map[string]contracts.IndexStats, len(byIndex))
	for indexName, snapshots := range byIndex {
		if len(snapshots) == 0 {
			continue
		}
		comparison[indexName] = indexStats(snapshots)
	}
	return comparison
}

// Narrative renders the day as a few template sentences: overall
// sentiment, the lead gainer and largest decliner, and the best index.
func (a *Analyzer) Narrative(analysis contracts.MarketAnalysis, comparison map[string]contracts.IndexStats) string {
	summary := analysis.Summary

	sentiment := "mixed"
	if summary.Gainers > summary.Losers {
		sentiment = "positive"
	} else if summary.Losers > summary.Gainers {
		sentiment = "negative"
	}

	parts := []string{fmt.Sprintf(
		"Today's market showed %s sentiment with %d gainers and %d losers, averaging %.2f%% change overall.",
		sentiment, summary.Gainers, summary.Losers, summary.AverageChangePercent,
	)}

	if len(analysis.TopGainers) > 0 {
		lead := analysis.TopGainers[0]
		parts = append(parts, fmt.Sprintf("%s led gains with a %.2f%% increase.", lead.Symbol, lead.ChangePercent))
	}
	if len(analysis.TopLosers) > 0 {
		worst := analysis.TopLosers[0]
		parts = append(parts, fmt.Sprintf("%s declined %.2f%%, marking the largest drop.", worst.Symbol, math.Abs(worst.ChangePercent)))
	}

	if best, ok := bestIndex(comparison); ok {
		parts = append(parts, fmt.Sprintf(
			"The %s index performed best with an average %.2f%% gain.",
			best, comparison[best].AverageChangePercent,
		))
	}

	return strings.Join(parts, " ")
}

func indexStats(snapshots []contracts.Snapshot) contracts.IndexStats {
	stats := contracts.IndexStats{StockCount: len(snapshots)}
	sum := 0.0
	for _, snap := range snapshots {
		sum += snap.ChangePercent
		stats.TotalVolume += snap.Volume
		if snap.ChangePercent > 0 {
			stats.Gainers++
		} else if snap.ChangePercent < 0 {
			stats.Losers++
		}
	}
	stats.AverageChangePercent = round2(sum / float64(len(snapshots)))
	return stats
}

// rankMovers sorts a copy of the snapshots with the given order and
// returns the first five as movers. Stable, so ties keep input order.
func rankMovers(snapshots []contracts.Snapshot, less func(x, y contracts.Snapshot) bool) []contracts.Mover {
	ranked := make([]contracts.Snapshot, len(snapshots))
	copy(ranked, snapshots)
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if len(ranked) > topCount {
		ranked = ranked[:topCount]
	}

	movers := make([]contracts.Mover, 0, len(ranked))
	for _, snap := range ranked {
		movers = append(movers, contracts.Mover{
			Symbol:        snap.Symbol,
			Name:          snap.Name,
			ChangePercent: snap.ChangePercent,
			Close:         snap.Close,
		})
	}
	return movers
}

func rankVolume(snapshots []contracts.Snapshot) []contracts.VolumeLeader {
	ranked := make([]contracts.Snapshot, len(snapshots))
	copy(ranked, snapshots)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Volume > ranked[j].Volume })
	if len(ranked) > topCount {
		ranked = ranked[:topCount]
	}

	leaders := make([]contracts.VolumeLeader, 0, len(ranked))
	for _, snap := range ranked {
		leaders = append(leaders, contracts.VolumeLeader{
			Symbol:        snap.Symbol,
			Name:          snap.Name,
			Volume:        snap.Volume,
			ChangePercent: snap.ChangePercent,
		})
	}
	return leaders
}

// bestIndex picks the highest average change; names are walked in sorted
// order so ties resolve the same way every run.
func bestIndex(comparison map[string]contracts.IndexStats) (string, bool) {
	names := make([]string, 0, len(comparison))
	for name := range comparison {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	for _, name := range names {
		if best == "" || comparison[name].AverageChangePercent > comparison[best].AverageChangePercent {
			best = name
		}
	}
	return best, best != ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
