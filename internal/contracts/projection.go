package contracts

import (
	"strings"
	"time"
)

// Trend is the directional read on a symbol for the projection horizon
type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
	TrendNeutral Trend = "Neutral"
)

// Recommendation is the five-level buy/hold/sell signal
type Recommendation string

const (
	RecStrongBuy  Recommendation = "STRONG BUY"
	RecBuy        Recommendation = "BUY"
	RecHold       Recommendation = "HOLD"
	RecSell       Recommendation = "SELL"
	RecStrongSell Recommendation = "STRONG SELL"
)

// AllRecommendations returns the recommendation levels strongest-buy first
func AllRecommendations() []Recommendation {
	return []Recommendation{RecStrongBuy, RecBuy, RecHold, RecSell, RecStrongSell}
}

// ParseRecommendation matches a user-supplied string (any case, "_" or "-"
// accepted for the space) against the known recommendation levels.
func ParseRecommendation(s string) (Recommendation, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")

	for _, rec := range AllRecommendations() {
		if normalized == string(rec) {
			return rec, true
		}
	}
	return "", false
}

// RiskLevel classifies projection risk from the volatility score
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Projection is the derived per-symbol record: 5-day price targets,
// recommendation, confidence and supporting scores. Immutable; one per
// symbol per run. Invariant: TargetLow <= TargetMid <= TargetHigh.
type Projection struct {
	Symbol                string         `json:"symbol"`
	Name                  string         `json:"name"`
	CurrentPrice          float64        `json:"current_price"`
	TargetLow             float64        `json:"target_low"`
	TargetMid             float64        `json:"target_mid"`
	TargetHigh            float64        `json:"target_high"`
	ExpectedChangePercent float64        `json:"expected_change_percent"`
	Recommendation        Recommendation `json:"recommendation"`
	Confidence            int            `json:"confidence"`
	Trend                 Trend          `json:"trend"`
	MomentumScore         float64        `json:"momentum_score"`
	VolatilityScore       float64        `json:"volatility_score"`
	RiskLevel             RiskLevel      `json:"risk_level"`
	Reason                string         `json:"reason"`
	ProjectionDate        time.Time      `json:"projection_date"`
	GeneratedAt           time.Time      `json:"generated_at"`
}

// Opportunity is a summary entry for a top strong-buy or strong-sell pick
type Opportunity struct {
	Symbol     string  `json:"symbol"`
	TargetMid  float64 `json:"target_mid"`
	Confidence int     `json:"confidence"`
}

// TopOpportunities holds the best picks per strong-signal bucket
type TopOpportunities struct {
	StrongBuys  []Opportunity `json:"strong_buys"`
	StrongSells []Opportunity `json:"strong_sells"`
}

// ProjectionSummary aggregates all projections of one run. Recomputed
// each run, never mutated in place.
type ProjectionSummary struct {
	TotalProjections      int                    `json:"total_projections"`
	Recommendations       map[Recommendation]int `json:"recommendations"`
	Trends                map[Trend]int          `json:"trends"`
	AverageConfidence     float64                `json:"average_confidence"`
	AverageExpectedChange float64                `json:"average_expected_change"`
	TopOpportunities      TopOpportunities       `json:"top_opportunities"`
	ProjectionDate        time.Time              `json:"projection_date"`
	GeneratedAt           time.Time              `json:"generated_at"`
}
