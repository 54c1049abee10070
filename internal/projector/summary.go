package projector

import (
	"sort"

	"github.com/marketday/tracker/internal/contracts"
)

const topOpportunityCount = 5

// Summarize aggregates one run's projections into histograms, averages,
// and the top strong-buy/strong-sell picks. An empty input yields an
// empty summary, not an error.
func (p *Projector) Summarize(projections []contracts.Projection) contracts.ProjectionSummary {
	if len(projections) == 0 {
		return contracts.ProjectionSummary{}
	}

	recommendations := make(map[contracts.Recommendation]int)
	trends := make(map[contracts.Trend]int)
	var sumConfidence, sumExpected float64

	for _, projection := range projections {
		recommendations[projection.Recommendation]++
		trends[projection.Trend]++
		sumConfidence += float64(projection.Confidence)
		sumExpected += projection.ExpectedChangePercent
	}

	n := float64(len(projections))
	now := p.now()
	summary := contracts.ProjectionSummary{
		TotalProjections:      len(projections),
		Recommendations:       recommendations,
		Trends:                trends,
		AverageConfidence:     round1(sumConfidence / n),
		AverageExpectedChange: round2(sumExpected / n),
		TopOpportunities: contracts.TopOpportunities{
			StrongBuys:  topOpportunities(projections, contracts.RecStrongBuy),
			StrongSells: topOpportunities(projections, contracts.RecStrongSell),
		},
		ProjectionDate: contracts.DateOnly(now.AddDate(0, 0, p.days)),
		GeneratedAt:    now,
	}

	p.log.Info().
		Int("projections", len(projections)).
		Interface("recommendations", recommendations).
		Msg("projection summary generated")

	return summary
}

// topOpportunities picks the highest-confidence projections carrying the
// given recommendation, stable on ties so input order decides.
func topOpportunities(projections []contracts.Projection, rec contracts.Recommendation) []contracts.Opportunity {
	var matched []contracts.Projection
	for _, projection := range projections {
		if projection.Recommendation == rec {
			matched = append(matched, projection)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Confidence > matched[j].Confidence
	})
	if len(matched) > topOpportunityCount {
		matched = matched[:topOpportunityCount]
	}

	opportunities := make([]contracts.Opportunity, 0, len(matched))
	for _, projection := range matched {
		opportunities = append(opportunities, contracts.Opportunity{
			Symbol:     projection.Symbol,
			TargetMid:  projection.TargetMid,
			Confidence: projection.Confidence,
		})
	}
	return opportunities
}
