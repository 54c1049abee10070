package contracts

import "time"

// MarketStats holds the headline counts and change statistics for a run
type MarketStats struct {
	TotalStocks          int     `json:"total_stocks"`
	Gainers              int     `json:"gainers"`
	Losers               int     `json:"losers"`
	Unchanged            int     `json:"unchanged"`
	AverageChangePercent float64 `json:"average_change_percent"`
	MaxChangePercent     float64 `json:"max_change_percent"`
	MinChangePercent     float64 `json:"min_change_percent"`
}

// Mover is a top gainer or loser entry
type Mover struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	ChangePercent float64 `json:"change_percent"`
	Close         float64 `json:"close"`
}

// VolumeLeader is a most-traded entry
type VolumeLeader struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Volume        int64   `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
}

// IndexStats summarizes one index's constituents for a run
type IndexStats struct {
	StockCount           int     `json:"stock_count"`
	AverageChangePercent float64 `json:"average_change_percent"`
	TotalVolume          int64   `json:"total_volume"`
	Gainers              int     `json:"gainers"`
	Losers               int     `json:"losers"`
}

// MarketAnalysis is the analyzer's per-run market summary
type MarketAnalysis struct {
	Date       time.Time             `json:"date"`
	Summary    MarketStats           `json:"summary"`
	TopGainers []Mover               `json:"top_gainers"`
	TopLosers  []Mover               `json:"top_losers"`
	TopVolume  []VolumeLeader        `json:"top_volume"`
	IndexStats map[string]IndexStats `json:"index_statistics"`
}
