package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketday/tracker/internal/contracts"
)

func ptr[T any](v T) *T { return &v }

func TestOperatorCompare(t *testing.T) {
	tests := []struct {
		op        Operator
		value     float64
		threshold float64
		want      bool
	}{
		{OpLessThan, 99, 100, true},
		{OpLessThan, 100, 100, false},
		{OpLessOrEqual, 100, 100, true},
		{OpLessOrEqual, 101, 100, false},
		{OpGreaterThan, 101, 100, true},
		{OpGreaterThan, 100, 100, false},
		{OpGreaterOrEqual, 100, 100, true},
		{OpGreaterOrEqual, 99, 100, false},
		{OpEqual, 100, 100, true},
		{OpEqual, 99, 100, false},
	}
	for _, tt := range tests {
		got := tt.op.compare(tt.value, tt.threshold)
		assert.Equal(t, tt.want, got, "%s(%v, %v)", tt.op, tt.value, tt.threshold)
	}
}

func TestMatchesPriceDefaultsToLessThan(t *testing.T) {
	cond := Condition{Type: ConditionPriceThreshold, Symbol: "AAPL", Value: 100}

	assert.True(t, matchesPrice(cond, contracts.Snapshot{Symbol: "AAPL", Close: 95}))
	assert.False(t, matchesPrice(cond, contracts.Snapshot{Symbol: "AAPL", Close: 100}))
}

func TestMatchesScreening(t *testing.T) {
	snapshot := contracts.Snapshot{
		Symbol:        "TSLA",
		Close:         250,
		ChangePercent: -3.5,
		Volume:        5_000_000,
	}

	tests := []struct {
		name    string
		filters *MatchFilters
		want    bool
	}{
		{"nil filters match everything", nil, true},
		{"all thresholds satisfied", &MatchFilters{
			VolumeThreshold:   ptr(int64(2_000_000)),
			MinDailyChangePct: ptr(2.0),
			PriceMin:          ptr(10.0),
			PriceMax:          ptr(500.0),
		}, true},
		{"volume below threshold", &MatchFilters{VolumeThreshold: ptr(int64(10_000_000))}, false},
		{"change magnitude below minimum", &MatchFilters{MinDailyChangePct: ptr(5.0)}, false},
		{"negative change matches by magnitude", &MatchFilters{MinDailyChangePct: ptr(3.0)}, true},
		{"price below minimum", &MatchFilters{PriceMin: ptr(300.0)}, false},
		{"price above maximum", &MatchFilters{PriceMax: ptr(200.0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := Condition{Type: ConditionScreeningMatch, Filters: tt.filters}
			assert.Equal(t, tt.want, matchesScreening(cond, snapshot))
		})
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr string
	}{
		{
			name:    "missing id",
			rule:    Rule{Condition: Condition{Type: ConditionScreeningMatch}},
			wantErr: "missing id",
		},
		{
			name:    "price threshold without symbol",
			rule:    Rule{ID: "r1", Condition: Condition{Type: ConditionPriceThreshold, Value: 10}},
			wantErr: "requires a symbol",
		},
		{
			name: "unsupported operator",
			rule: Rule{ID: "r1", Condition: Condition{
				Type: ConditionPriceThreshold, Symbol: "AAPL", Operator: "between", Value: 10,
			}},
			wantErr: "unsupported operator",
		},
		{
			name:    "unsupported condition type",
			rule:    Rule{ID: "r1", Condition: Condition{Type: "volume_spike"}},
			wantErr: "unsupported condition type",
		},
		{
			name: "valid price threshold with default operator",
			rule: Rule{ID: "r1", Condition: Condition{Type: ConditionPriceThreshold, Symbol: "AAPL", Value: 10}},
		},
		{
			name: "valid screening match",
			rule: Rule{ID: "r2", Condition: Condition{Type: ConditionScreeningMatch}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRule(tt.rule)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
