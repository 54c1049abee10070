package screener

import (
	"encoding/json"
	"os"

	"github.com/marketday/tracker/pkg/logger"
)

// Filters holds the screening thresholds and scoring weights.
// Monetary thresholds are in millions of USD, matching snapshot market
// caps.
type Filters struct {
	VolumeThreshold   int64   `json:"volume_threshold"`
	PriceMin          float64 `json:"price_min"`
	PriceMax          float64 `json:"price_max"`
	MinDailyChangePct float64 `json:"min_daily_change_pct"`
	MarketCapMin      float64 `json:"market_cap_min"`
	TopN              int     `json:"top_n"`

	// CapEstimateMultiplier feeds the close*volume*multiplier estimate
	// standing in when the true market cap is unknown.
	CapEstimateMultiplier float64 `json:"cap_estimate_multiplier"`

	Weights Weights `json:"weights"`
}

// Weights are the scoring weights. They should sum to 1 so the total
// score stays in [0,100].
type Weights struct {
	Volume      float64 `json:"volume"`
	PriceChange float64 `json:"price_change"`
	PriceRange  float64 `json:"price_range"`
	MarketCap   float64 `json:"market_cap"`
}

// DefaultFilters returns the stock screening defaults: liquid, moving,
// reasonably sized candidates.
func DefaultFilters() Filters {
	return Filters{
		VolumeThreshold:       1_000_000,
		PriceMin:              10.0,
		PriceMax:              500.0,
		MinDailyChangePct:     2.0,
		MarketCapMin:          1_000, // $1B
		TopN:                  100,
		CapEstimateMultiplier: 10.0,
		Weights: Weights{
			Volume:      0.30,
			PriceChange: 0.35,
			PriceRange:  0.15,
			MarketCap:   0.20,
		},
	}
}

// LoadFilters reads a JSON filter file over the defaults, so partial
// files override only what they name. A missing file is not an error; a
// malformed one falls back to defaults with a warning.
func LoadFilters(path string, log *logger.Logger) Filters {
	filters := DefaultFilters()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("Failed to read screener filters")
		}
		return filters
	}

	if err := json.Unmarshal(data, &filters); err != nil {
		log.WithError(err).WithField("path", path).Warn("Malformed screener filters, using defaults")
		return DefaultFilters()
	}

	log.WithField("path", path).Debug("Loaded screener filters")
	return filters
}
