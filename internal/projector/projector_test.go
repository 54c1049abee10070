package projector

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketday/tracker/internal/contracts"
)

var testNow = time.Date(2025, 7, 3, 15, 0, 0, 0, time.UTC)

func newTestProjector() *Projector {
	p := New(zerolog.Nop())
	p.now = func() time.Time { return testNow }
	return p
}

func TestProjectStrongGainer(t *testing.T) {
	p := newTestProjector()

	projection := p.Project(contracts.Snapshot{
		Symbol:        "NVDA",
		Name:          "NVIDIA Corp",
		Close:         150,
		ChangePercent: 5.0,
		Volume:        50_000_000,
		MarketCap:     2_500,
	})
	require.NotNil(t, projection)

	assert.Equal(t, "NVDA", projection.Symbol)
	assert.Equal(t, "NVIDIA Corp", projection.Name)
	assert.InDelta(t, 150.0, projection.CurrentPrice, 1e-9)
	assert.InDelta(t, 50.0, projection.MomentumScore, 1e-9)
	assert.InDelta(t, 25.0, projection.VolatilityScore, 1e-9)
	assert.Equal(t, contracts.TrendBullish, projection.Trend)
	assert.Equal(t, contracts.RecStrongBuy, projection.Recommendation)
	assert.InDelta(t, 153.75, projection.TargetMid, 1e-9)
	assert.InDelta(t, 152.60, projection.TargetLow, 1e-9)
	assert.InDelta(t, 154.90, projection.TargetHigh, 1e-9)
	assert.InDelta(t, 2.5, projection.ExpectedChangePercent, 1e-9)
	assert.Equal(t, 95, projection.Confidence)
	assert.Equal(t, contracts.RiskLow, projection.RiskLevel)
	assert.Equal(t, "Positive +5.0% momentum; strong momentum; high volume support", projection.Reason)
	assert.Equal(t, time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC), projection.ProjectionDate)
	assert.Equal(t, testNow, projection.GeneratedAt)
}

func TestProjectSharpDecliner(t *testing.T) {
	p := newTestProjector()

	projection := p.Project(contracts.Snapshot{
		Symbol:        "XYZ",
		Close:         80,
		ChangePercent: -6.0,
		Volume:        500_000,
		MarketCap:     900,
	})
	require.NotNil(t, projection)

	assert.InDelta(t, -60.0, projection.MomentumScore, 1e-9)
	assert.InDelta(t, 30.0, projection.VolatilityScore, 1e-9)
	assert.Equal(t, contracts.TrendBearish, projection.Trend)
	assert.Equal(t, contracts.RecStrongSell, projection.Recommendation)
	assert.InDelta(t, 78.80, projection.TargetMid, 1e-9)
	assert.InDelta(t, 78.09, projection.TargetLow, 1e-9)
	assert.InDelta(t, 79.51, projection.TargetHigh, 1e-9)
	assert.InDelta(t, -1.5, projection.ExpectedChangePercent, 1e-9)
	assert.Equal(t, 75, projection.Confidence)
	assert.Equal(t, contracts.RiskMedium, projection.RiskLevel)
	assert.Equal(t, "Sharp -6.0% decline; very strong momentum; low volume caution", projection.Reason)
}

func TestProjectQuietDay(t *testing.T) {
	p := newTestProjector()

	projection := p.Project(contracts.Snapshot{
		Symbol:        "MSFT",
		Close:         200,
		ChangePercent: 0.5,
		Volume:        12_000_000,
		MarketCap:     150_000,
	})
	require.NotNil(t, projection)

	assert.Equal(t, contracts.TrendNeutral, projection.Trend)
	assert.Equal(t, contracts.RecHold, projection.Recommendation)
	assert.InDelta(t, 200.60, projection.TargetMid, 1e-9)
	assert.InDelta(t, 200.45, projection.TargetLow, 1e-9)
	assert.InDelta(t, 200.75, projection.TargetHigh, 1e-9)
	assert.InDelta(t, 0.3, projection.ExpectedChangePercent, 1e-9)
	assert.Equal(t, 80, projection.Confidence)
	assert.Equal(t, contracts.RiskLow, projection.RiskLevel)
	assert.Equal(t, "Stable +0.5% change; high volume support; trend likely to continue", projection.Reason)
}

func TestProjectClampsExtremeMove(t *testing.T) {
	p := newTestProjector()

	projection := p.Project(contracts.Snapshot{
		Symbol:        "MEME",
		Close:         40,
		ChangePercent: 15.0,
		Volume:        20_000_000,
	})
	require.NotNil(t, projection)

	assert.InDelta(t, 100.0, projection.MomentumScore, 1e-9)
	assert.InDelta(t, 75.0, projection.VolatilityScore, 1e-9)
	// Volatility blocks the strong signal even at full momentum.
	assert.Equal(t, contracts.RecBuy, projection.Recommendation)
	assert.Equal(t, contracts.RiskHigh, projection.RiskLevel)
	assert.InDelta(t, 41.0, projection.TargetMid, 1e-9)
	assert.Equal(t, 80, projection.Confidence)
	assert.Equal(t, "Strong +15.0% gain; very strong momentum; high volume support; potential for reversal", projection.Reason)
}

func TestProjectHighVolatilityDampensConfidence(t *testing.T) {
	p := newTestProjector()

	projection := p.Project(contracts.Snapshot{
		Symbol:        "CRSH",
		Close:         25,
		ChangePercent: -20.0,
		Volume:        800_000,
	})
	require.NotNil(t, projection)

	assert.InDelta(t, -100.0, projection.MomentumScore, 1e-9)
	assert.InDelta(t, 100.0, projection.VolatilityScore, 1e-9)
	assert.Equal(t, contracts.RecSell, projection.Recommendation)
	assert.Equal(t, 55, projection.Confidence)
	assert.Equal(t, contracts.RiskHigh, projection.RiskLevel)
}

func TestProjectTargetOrdering(t *testing.T) {
	p := newTestProjector()

	for _, changePct := range []float64{-12, -6, -2, 0, 0.4, 2, 6, 12} {
		projection := p.Project(contracts.Snapshot{
			Symbol:        "ORD",
			Close:         100,
			ChangePercent: changePct,
			Volume:        3_000_000,
		})
		require.NotNil(t, projection)
		assert.LessOrEqual(t, projection.TargetLow, projection.TargetMid, "change %.1f", changePct)
		assert.LessOrEqual(t, projection.TargetMid, projection.TargetHigh, "change %.1f", changePct)
	}
}

func TestProjectNoClosePrice(t *testing.T) {
	p := newTestProjector()

	assert.Nil(t, p.Project(contracts.Snapshot{Symbol: "ZERO", Close: 0}))
	assert.Nil(t, p.Project(contracts.Snapshot{Symbol: "NEG", Close: -5}))
}

func TestProjectAllSkipsUnusable(t *testing.T) {
	p := newTestProjector()

	projections, err := p.ProjectAll(context.Background(), []contracts.Snapshot{
		{Symbol: "AAA", Close: 100, ChangePercent: 1.0, Volume: 2_000_000},
		{Symbol: "BAD", Close: 0},
		{Symbol: "BBB", Close: 50, ChangePercent: -1.0, Volume: 2_000_000},
	})
	require.NoError(t, err)

	require.Len(t, projections, 2)
	assert.Equal(t, "AAA", projections[0].Symbol)
	assert.Equal(t, "BBB", projections[1].Symbol)
}

func TestProjectAllCanceledContext(t *testing.T) {
	p := newTestProjector()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	projections, err := p.ProjectAll(ctx, []contracts.Snapshot{
		{Symbol: "AAA", Close: 100},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, projections)
}
