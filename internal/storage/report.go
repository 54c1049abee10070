package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marketday/tracker/internal/contracts"
)

const (
	reportSectionLimit = 10
	highConfidenceBar  = 85
)

// ProjectionReport renders the Markdown companion to the projections
// CSV: the distribution chart, strong-signal tables and expected-move
// rankings for one run. The CLI report command renders the same
// document from stored projections.
func ProjectionReport(projections []contracts.Projection, generatedAt time.Time) string {
	if len(projections) == 0 {
		return ""
	}

	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	total := float64(len(projections))
	targetDate := projections[0].ProjectionDate

	var confSum, expSum float64
	recCounts := make(map[contracts.Recommendation]int)
	trendCounts := make(map[contracts.Trend]int)
	riskCounts := make(map[contracts.RiskLevel]int)
	highConfCount := 0
	for _, p := range projections {
		confSum += float64(p.Confidence)
		expSum += p.ExpectedChangePercent
		recCounts[p.Recommendation]++
		trendCounts[p.Trend]++
		riskCounts[p.RiskLevel]++
		if p.Confidence >= highConfidenceBar {
			highConfCount++
		}
	}
	avgConfidence := confSum / total
	avgExpected := expSum / total

	sentiment := "Neutral"
	switch {
	case avgExpected > 0.5:
		sentiment = "Bullish"
	case avgExpected < -0.5:
		sentiment = "Bearish"
	}

	add(
		"# Stock Market Projections Report",
		"",
		fmt.Sprintf("**Projection Period:** 5 Days (Target Date: %s)", targetDate.Format("January 02, 2006")),
		fmt.Sprintf("**Generated:** %s", generatedAt.Format("January 02, 2006 at 03:04 PM")),
		fmt.Sprintf("**Total Stocks Analyzed:** %d", len(projections)),
		"",
		"---",
		"",
		"## Executive Summary",
		"",
		fmt.Sprintf("- **Average Confidence:** %.1f%%", avgConfidence),
		fmt.Sprintf("- **Expected Market Direction:** %+.2f%%", avgExpected),
		fmt.Sprintf("- **Market Sentiment:** %s", sentiment),
		"",
		"### Recommendation Distribution",
		"",
		"```text",
	)
	for _, rec := range contracts.AllRecommendations() {
		count := recCounts[rec]
		pct := float64(count) / total * 100
		bar := strings.Repeat("█", int(pct/2))
		add(fmt.Sprintf("%-12s │ %s %3d (%5.1f%%)", rec, bar, count, pct))
	}
	add(
		"```",
		"",
		"### Market Sentiment Breakdown",
		"",
		"| Trend | Count | Share |",
		"|-------|-------|-------|",
	)
	for _, trend := range []contracts.Trend{contracts.TrendBullish, contracts.TrendNeutral, contracts.TrendBearish} {
		count := trendCounts[trend]
		add(fmt.Sprintf("| %s | %d | %.1f%% |", trend, count, float64(count)/total*100))
	}
	add(
		"",
		"### Risk Profile",
		"",
		"| Risk Level | Count | Share |",
		"|------------|-------|-------|",
	)
	for _, risk := range []contracts.RiskLevel{contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh} {
		count := riskCounts[risk]
		add(fmt.Sprintf("| %s | %d | %.1f%% |", risk, count, float64(count)/total*100))
	}
	add("", "---", "")

	if picks := topBy(projections, isRec(contracts.RecStrongBuy), byConfidence); len(picks) > 0 {
		add(
			"## STRONG BUY Opportunities",
			"",
			fmt.Sprintf("%d stocks identified with STRONG BUY rating.", recCounts[contracts.RecStrongBuy]),
			"",
			"| Symbol | Current → Target | Change | Confidence | Reason |",
			"|--------|------------------|--------|------------|--------|",
		)
		for _, p := range picks {
			add(fmt.Sprintf("| **%s** | $%.2f → $%.2f | %+.1f%% | %d%% | %s |",
				p.Symbol, p.CurrentPrice, p.TargetMid, p.ExpectedChangePercent, p.Confidence, truncate(p.Reason, 55)))
		}
		add("", "---", "")
	}

	if picks := topBy(projections, isRec(contracts.RecBuy), byConfidence); len(picks) > 0 {
		add(
			"## BUY Opportunities",
			"",
			"| Symbol | Current | Target | Change | Confidence | Risk |",
			"|--------|---------|--------|--------|------------|------|",
		)
		for _, p := range picks {
			add(fmt.Sprintf("| %s | $%.2f | $%.2f | %+.1f%% | %d%% | %s |",
				p.Symbol, p.CurrentPrice, p.TargetMid, p.ExpectedChangePercent, p.Confidence, p.RiskLevel))
		}
		add("", "---", "")
	}

	if picks := topBy(projections, isRec(contracts.RecStrongSell), byConfidence); len(picks) > 0 {
		add(
			"## STRONG SELL Warnings",
			"",
			"| Symbol | Current | Target | Change | Confidence | Risk | Reason |",
			"|--------|---------|--------|--------|------------|------|--------|",
		)
		for _, p := range picks {
			add(fmt.Sprintf("| %s | $%.2f | $%.2f | %+.1f%% | %d%% | %s | %s |",
				p.Symbol, p.CurrentPrice, p.TargetMid, p.ExpectedChangePercent, p.Confidence, p.RiskLevel, truncate(p.Reason, 50)))
		}
		add("", "---", "")
	}

	gainer := func(p contracts.Projection) bool { return p.ExpectedChangePercent > 0 }
	if picks := topBy(projections, gainer, byExpectedGain); len(picks) > 0 {
		add(
			"## Top Expected Price Gainers",
			"",
			"Stocks projected to increase the most, regardless of recommendation.",
			"",
			"| Symbol | Current | Target | Expected Gain | Confidence | Recommendation |",
			"|--------|---------|--------|---------------|------------|----------------|",
		)
		for _, p := range picks {
			add(fmt.Sprintf("| %s | $%.2f | $%.2f | %+.2f%% | %d%% | %s |",
				p.Symbol, p.CurrentPrice, p.TargetMid, p.ExpectedChangePercent, p.Confidence, p.Recommendation))
		}
		add("", "---", "")
	}

	decliner := func(p contracts.Projection) bool { return p.ExpectedChangePercent < 0 }
	if picks := topBy(projections, decliner, byExpectedDrop); len(picks) > 0 {
		add(
			"## Top Expected Price Decliners",
			"",
			"Stocks projected to decline the most.",
			"",
			"| Symbol | Current | Target | Expected Decline | Confidence | Recommendation |",
			"|--------|---------|--------|------------------|------------|----------------|",
		)
		for _, p := range picks {
			add(fmt.Sprintf("| %s | $%.2f | $%.2f | %+.2f%% | %d%% | %s |",
				p.Symbol, p.CurrentPrice, p.TargetMid, p.ExpectedChangePercent, p.Confidence, p.Recommendation))
		}
		add("", "---", "")
	}

	confident := func(p contracts.Projection) bool { return p.Confidence >= highConfidenceBar }
	if picks := topBy(projections, confident, byExpectedGain); len(picks) > 0 {
		add(
			"## High Confidence Picks (85%+)",
			"",
			fmt.Sprintf("%d stocks with highest confidence and best upside potential.", highConfCount),
			"",
			"| Symbol | Current → Target | Expected Change | Confidence | Recommendation | Trend |",
			"|--------|------------------|-----------------|------------|----------------|-------|",
		)
		for _, p := range picks {
			add(fmt.Sprintf("| %s | $%.2f → $%.2f | %+.2f%% | %d%% | %s | %s |",
				p.Symbol, p.CurrentPrice, p.TargetMid, p.ExpectedChangePercent, p.Confidence, p.Recommendation, p.Trend))
		}
		add("", "---", "")
	}

	add(
		"## Disclaimer",
		"",
		"> These projections are for informational purposes only. Not financial advice.",
		">",
		"> Always conduct your own research and consult with financial advisors.",
		"",
		"---",
		"",
		fmt.Sprintf("*Generated on %s by Market Day Tracker*", generatedAt.Format("January 02, 2006")),
	)

	return strings.Join(lines, "\n") + "\n"
}

// topBy filters projections with keep, orders them with better and caps
// the result at the section limit. The sort is stable so ties keep
// input order.
func topBy(projections []contracts.Projection, keep func(contracts.Projection) bool, better func(a, b contracts.Projection) bool) []contracts.Projection {
	picked := make([]contracts.Projection, 0, len(projections))
	for _, p := range projections {
		if keep(p) {
			picked = append(picked, p)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return better(picked[i], picked[j]) })
	if len(picked) > reportSectionLimit {
		picked = picked[:reportSectionLimit]
	}
	return picked
}

func isRec(rec contracts.Recommendation) func(contracts.Projection) bool {
	return func(p contracts.Projection) bool { return p.Recommendation == rec }
}

func byConfidence(a, b contracts.Projection) bool { return a.Confidence > b.Confidence }

func byExpectedGain(a, b contracts.Projection) bool {
	return a.ExpectedChangePercent > b.ExpectedChangePercent
}

func byExpectedDrop(a, b contracts.Projection) bool {
	return a.ExpectedChangePercent < b.ExpectedChangePercent
}

// truncate shortens s to at most n bytes, marking the cut with "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
