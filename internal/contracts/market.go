package contracts

import "time"

// Quote is a raw point-in-time price read for one symbol.
// Ephemeral: produced by the quote client, consumed immediately.
type Quote struct {
	Current       float64
	Open          float64
	High          float64
	Low           float64
	PreviousClose float64
	Volume        int64
	Timestamp     time.Time
}

// Snapshot is one symbol's end-of-day record, the unit the rest of the
// pipeline operates on. Immutable once produced; lifetime is one run.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Exchange      string    `json:"exchange"`
	IndexName     string    `json:"index_name"`
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	MarketCap     float64   `json:"market_cap"` // millions of USD
}

// ScreeningCandidate is the lightweight per-symbol record scored during
// screening. Discarded once the qualified symbol list is extracted.
type ScreeningCandidate struct {
	Symbol        string  `json:"symbol"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
	MarketCap     float64 `json:"market_cap"`
	Score         float64 `json:"screener_score"`
}

// DateOnly normalizes a timestamp to its UTC calendar day. Trade dates
// throughout the system carry this form so date equality is exact.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PriceChange computes the change and percent change between a close and
// the previous close. A non-positive previous close yields zero percent.
func PriceChange(close, previousClose float64) (change, changePercent float64) {
	change = close - previousClose
	if previousClose > 0 {
		changePercent = change / previousClose * 100
	}
	return change, changePercent
}
