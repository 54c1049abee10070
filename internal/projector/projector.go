// Package projector derives short-term price projections and
// recommendations from daily snapshots. All scoring is deterministic
// arithmetic over a single day's figures; rounding happens only when a
// Projection is assembled, never between steps.
package projector

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketday/tracker/internal/contracts"
)

const projectionDays = 5

// Projector generates per-symbol projections and run-level summaries.
type Projector struct {
	days int
	now  func() time.Time
	log  zerolog.Logger
}

// New creates a projector with the default 5-day horizon.
func New(log zerolog.Logger) *Projector {
	return &Projector{
		days: projectionDays,
		now:  time.Now,
		log:  log.With().Str("component", "projector").Logger(),
	}
}

// Project derives one projection from a snapshot. Returns nil when the
// snapshot has no usable close price.
func (p *Projector) Project(snapshot contracts.Snapshot) *contracts.Projection {
	if snapshot.Close <= 0 {
		return nil
	}

	changePct := snapshot.ChangePercent
	momentum := momentumScore(changePct)
	volatility := volatilityScore(changePct)
	trend := determineTrend(momentum, changePct)
	targetLow, targetMid, targetHigh := priceTargets(snapshot.Close, momentum, volatility, changePct)
	recommendation := recommend(momentum, volatility)
	confidence := confidenceScore(momentum, volatility, snapshot.Volume, snapshot.MarketCap)

	now := p.now()
	projection := &contracts.Projection{
		Symbol:                snapshot.Symbol,
		Name:                  snapshot.Name,
		CurrentPrice:          round2(snapshot.Close),
		TargetLow:             round2(targetLow),
		TargetMid:             round2(targetMid),
		TargetHigh:            round2(targetHigh),
		ExpectedChangePercent: round2((targetMid - snapshot.Close) / snapshot.Close * 100),
		Recommendation:        recommendation,
		Confidence:            confidence,
		Trend:                 trend,
		MomentumScore:         round1(momentum),
		VolatilityScore:       round1(volatility),
		RiskLevel:             assessRisk(volatility),
		Reason:                buildReason(snapshot, momentum, trend),
		ProjectionDate:        contracts.DateOnly(now.AddDate(0, 0, p.days)),
		GeneratedAt:           now,
	}

	p.log.Debug().
		Str("symbol", snapshot.Symbol).
		Str("recommendation", string(recommendation)).
		Float64("target_mid", projection.TargetMid).
		Int("confidence", confidence).
		Msg("projection generated")

	return projection
}

// ProjectAll projects every snapshot in order. Snapshots without a close
// price are skipped; cancellation returns the projections built so far.
func (p *Projector) ProjectAll(ctx context.Context, snapshots []contracts.Snapshot) ([]contracts.Projection, error) {
	var projections []contracts.Projection

	for _, snapshot := range snapshots {
		select {
		case <-ctx.Done():
			p.log.Warn().Msg("context cancelled during projection")
			return projections, ctx.Err()
		default:
		}

		if projection := p.Project(snapshot); projection != nil {
			projections = append(projections, *projection)
		}
	}

	p.log.Info().
		Int("snapshots", len(snapshots)).
		Int("projections", len(projections)).
		Msg("projection batch completed")

	return projections, nil
}

// momentumScore scales the daily change to -100..+100.
func momentumScore(changePct float64) float64 {
	momentum := changePct * 10
	return math.Max(-100, math.Min(100, momentum))
}

// volatilityScore scales the absolute daily change to 0..100.
func volatilityScore(changePct float64) float64 {
	return math.Min(100, math.Abs(changePct)*5)
}

func determineTrend(momentum, changePct float64) contracts.Trend {
	switch {
	case momentum > 20 || changePct > 3:
		return contracts.TrendBullish
	case momentum < -20 || changePct < -3:
		return contracts.TrendBearish
	default:
		return contracts.TrendNeutral
	}
}

// priceTargets computes the low/mid/high band for the horizon. Momentum
// sets the direction of the mid target, volatility sets the band width.
// Large one-day moves are damped expecting partial reversal, small ones
// are extended expecting continuation.
func priceTargets(close, momentum, volatility, changePct float64) (low, mid, high float64) {
	baseMovePct := momentum / 100 * 5

	absChange := math.Abs(changePct)
	if absChange > 5 {
		baseMovePct *= 0.5
	} else if absChange < 1 {
		baseMovePct *= 1.2
	}

	rangePct := volatility / 100 * 3

	mid = close * (1 + baseMovePct/100)
	low = mid * (1 - rangePct/100)
	high = mid * (1 + rangePct/100)
	return low, mid, high
}

func recommend(momentum, volatility float64) contracts.Recommendation {
	switch {
	case momentum > 40 && volatility < 60:
		return contracts.RecStrongBuy
	case momentum > 15:
		return contracts.RecBuy
	case momentum < -40 && volatility < 60:
		return contracts.RecStrongSell
	case momentum < -15:
		return contracts.RecSell
	default:
		return contracts.RecHold
	}
}

// confidenceScore starts at 50 and shifts for momentum strength,
// volatility, volume, and market cap (millions USD), clamped to 0..100.
func confidenceScore(momentum, volatility float64, volume int64, marketCap float64) int {
	confidence := 50

	absMomentum := math.Abs(momentum)
	if absMomentum > 30 {
		confidence += 20
	} else if absMomentum > 15 {
		confidence += 10
	}

	if volatility < 30 {
		confidence += 15
	} else if volatility < 50 {
		confidence += 5
	} else if volatility > 80 {
		confidence -= 15
	}

	if volume > 10_000_000 {
		confidence += 10
	} else if volume > 5_000_000 {
		confidence += 5
	}

	if marketCap > 100_000 {
		confidence += 5
	}

	if confidence < 0 {
		confidence = 0
	} else if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func assessRisk(volatility float64) contracts.RiskLevel {
	switch {
	case volatility < 30:
		return contracts.RiskLow
	case volatility < 60:
		return contracts.RiskMedium
	default:
		return contracts.RiskHigh
	}
}

// buildReason assembles the display explanation: trend clause, momentum
// strength, volume context, and a reversal/continuation hint.
func buildReason(snapshot contracts.Snapshot, momentum float64, trend contracts.Trend) string {
	changePct := snapshot.ChangePercent
	var reasons []string

	switch trend {
	case contracts.TrendBullish:
		if changePct > 5 {
			reasons = append(reasons, fmt.Sprintf("Strong +%.1f%% gain", changePct))
		} else if changePct > 0 {
			reasons = append(reasons, fmt.Sprintf("Positive +%.1f%% momentum", changePct))
		}
	case contracts.TrendBearish:
		if changePct < -5 {
			reasons = append(reasons, fmt.Sprintf("Sharp %.1f%% decline", changePct))
		} else if changePct < 0 {
			reasons = append(reasons, fmt.Sprintf("Negative %.1f%% pressure", changePct))
		}
	default:
		reasons = append(reasons, fmt.Sprintf("Stable %+.1f%% change", changePct))
	}

	absMomentum := math.Abs(momentum)
	if absMomentum > 50 {
		reasons = append(reasons, "very strong momentum")
	} else if absMomentum > 30 {
		reasons = append(reasons, "strong momentum")
	} else if absMomentum > 15 {
		reasons = append(reasons, "moderate momentum")
	}

	if snapshot.Volume > 10_000_000 {
		reasons = append(reasons, "high volume support")
	} else if snapshot.Volume < 1_000_000 {
		reasons = append(reasons, "low volume caution")
	}

	absChange := math.Abs(changePct)
	if absChange > 7 {
		reasons = append(reasons, "potential for reversal")
	} else if absChange < 1 {
		reasons = append(reasons, "trend likely to continue")
	}

	return strings.Join(reasons, "; ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
