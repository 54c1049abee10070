// Package alerts evaluates user-configured alert rules against a day's
// snapshots. Rules come from config/alerts.json, fire at most once per
// cooldown window, and dispatch to notifiers resolved when the config
// is loaded.
package alerts

import (
	"fmt"
	"math"

	"github.com/marketday/tracker/internal/contracts"
)

// Operator compares an observed value against a rule threshold.
type Operator string

const (
	OpLessThan       Operator = "less_than"
	OpLessOrEqual    Operator = "less_or_equal"
	OpGreaterThan    Operator = "greater_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpEqual          Operator = "equal"
)

func (op Operator) valid() bool {
	switch op {
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual, OpEqual:
		return true
	}
	return false
}

func (op Operator) compare(value, threshold float64) bool {
	switch op {
	case OpLessThan:
		return value < threshold
	case OpLessOrEqual:
		return value <= threshold
	case OpGreaterThan:
		return value > threshold
	case OpGreaterOrEqual:
		return value >= threshold
	case OpEqual:
		return value == threshold
	}
	return false
}

// Condition kinds.
const (
	ConditionPriceThreshold = "price_threshold"
	ConditionScreeningMatch = "screening_match"
)

// Condition is the trigger definition of a rule. Type selects the
// fields that apply: price_threshold uses Symbol, Operator and Value;
// screening_match uses Filters.
type Condition struct {
	Type     string        `json:"type"`
	Symbol   string        `json:"symbol,omitempty"`
	Operator Operator      `json:"operator,omitempty"`
	Value    float64       `json:"value,omitempty"`
	Filters  *MatchFilters `json:"filters,omitempty"`
}

// MatchFilters are the screening_match thresholds. A nil field is not
// applied.
type MatchFilters struct {
	VolumeThreshold   *int64   `json:"volume_threshold,omitempty"`
	MinDailyChangePct *float64 `json:"min_daily_change_pct,omitempty"`
	PriceMin          *float64 `json:"price_min,omitempty"`
	PriceMax          *float64 `json:"price_max,omitempty"`
}

// Rule is one configured alert.
type Rule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Enabled         bool      `json:"enabled"`
	CooldownMinutes int       `json:"cooldown_minutes"`
	Condition       Condition `json:"condition"`
	Notifications   []string  `json:"notifications,omitempty"`
}

func validateRule(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("alert rule missing id")
	}

	switch rule.Condition.Type {
	case ConditionPriceThreshold:
		if rule.Condition.Symbol == "" {
			return fmt.Errorf("alert %q: price_threshold requires a symbol", rule.ID)
		}
		if op := rule.Condition.Operator; op != "" && !op.valid() {
			return fmt.Errorf("alert %q: unsupported operator %q", rule.ID, op)
		}
	case ConditionScreeningMatch:
	default:
		return fmt.Errorf("alert %q: unsupported condition type %q", rule.ID, rule.Condition.Type)
	}
	return nil
}

// matchesPrice reports whether the snapshot close satisfies the
// price_threshold condition. An empty operator means less_than.
func matchesPrice(c Condition, s contracts.Snapshot) bool {
	op := c.Operator
	if op == "" {
		op = OpLessThan
	}
	return op.compare(s.Close, c.Value)
}

// matchesScreening applies the screening_match filters. Change percent
// is compared by magnitude, so sharp moves in either direction match.
func matchesScreening(c Condition, s contracts.Snapshot) bool {
	f := c.Filters
	if f == nil {
		return true
	}
	if f.VolumeThreshold != nil && s.Volume < *f.VolumeThreshold {
		return false
	}
	if f.MinDailyChangePct != nil && math.Abs(s.ChangePercent) < *f.MinDailyChangePct {
		return false
	}
	if f.PriceMin != nil && s.Close < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && s.Close > *f.PriceMax {
		return false
	}
	return true
}
