package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

// StockHandler serves the per-symbol endpoints.
type StockHandler struct {
	snapshots   contracts.SnapshotRepository
	projections contracts.ProjectionRepository
	logger      *logger.Logger
}

// NewStockHandler creates a stock handler.
func NewStockHandler(
	snapshots contracts.SnapshotRepository,
	projections contracts.ProjectionRepository,
	log *logger.Logger,
) *StockHandler {
	return &StockHandler{
		snapshots:   snapshots,
		projections: projections,
		logger:      log,
	}
}

// stockCurrent is the latest-day slice of the stock detail payload.
type stockCurrent struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap,omitempty"`
}

// stockProjection is the projection slice of the stock detail payload.
type stockProjection struct {
	TargetDate     string  `json:"target_date"`
	TargetPrice    float64 `json:"target_price"`
	ExpectedChange float64 `json:"expected_change"`
	Confidence     int     `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	Risk           string  `json:"risk"`
	Trend          string  `json:"trend"`
}

// stockTechnical carries the scores behind a projection.
type stockTechnical struct {
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
}

// stockDetailResponse is the stock detail payload. Projection and
// technical sections are omitted when the symbol has no projection.
type stockDetailResponse struct {
	Symbol     string           `json:"symbol"`
	Name       string           `json:"name"`
	Date       string           `json:"date"`
	Current    stockCurrent     `json:"current"`
	Projection *stockProjection `json:"projection,omitempty"`
	Technical  *stockTechnical  `json:"technical,omitempty"`
}

// GetDetail returns the latest snapshot and projection for one symbol.
// GET /api/stocks/{symbol}
func (h *StockHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	date, err := h.snapshots.LatestDate(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest date")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stock")
		return
	}

	snapshot, err := h.snapshots.GetBySymbolAndDate(ctx, symbol, date)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Stock %s not found", symbol))
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stock")
		return
	}

	detail := stockDetailResponse{
		Symbol: snapshot.Symbol,
		Name:   snapshot.Name,
		Date:   date.Format("2006-01-02"),
		Current: stockCurrent{
			Price:         snapshot.Close,
			Change:        snapshot.Change,
			ChangePercent: snapshot.ChangePercent,
			Volume:        snapshot.Volume,
			MarketCap:     snapshot.MarketCap,
		},
	}

	// A symbol outside the screened set has no projection. The detail
	// still renders from the snapshot alone.
	projection, err := h.projections.GetBySymbolAndDate(ctx, symbol, date)
	if err != nil && !errors.Is(err, contracts.ErrNotFound) {
		h.logger.WithError(err).WithField("symbol", symbol).Warn("Could not load projection")
	}
	if err == nil {
		detail.Projection = &stockProjection{
			TargetDate:     projection.ProjectionDate.Format("2006-01-02"),
			TargetPrice:    projection.TargetMid,
			ExpectedChange: projection.ExpectedChangePercent,
			Confidence:     projection.Confidence,
			Recommendation: string(projection.Recommendation),
			Risk:           string(projection.RiskLevel),
			Trend:          string(projection.Trend),
		}
		detail.Technical = &stockTechnical{
			Momentum:   projection.MomentumScore,
			Volatility: projection.VolatilityScore,
		}
	}

	respondJSON(w, http.StatusOK, detail)
}

// historyPoint is one day of a symbol's history payload.
type historyPoint struct {
	Date          string  `json:"date"`
	Close         float64 `json:"close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
}

// stockHistoryResponse is the per-symbol history payload, oldest first.
type stockHistoryResponse struct {
	Symbol string         `json:"symbol"`
	Days   int            `json:"days"`
	Count  int            `json:"count"`
	Data   []historyPoint `json:"data"`
}

// GetHistory returns a symbol's recent daily closes.
// GET /api/stocks/{symbol}/history?days=30
func (h *StockHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	days := defaultHistoryDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	history, err := h.snapshots.GetHistory(ctx, symbol, days)
	if err != nil && !errors.Is(err, contracts.ErrNotFound) {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	if len(history) == 0 {
		respondError(w, http.StatusNotFound, fmt.Sprintf("No historical data found for %s", symbol))
		return
	}

	points := make([]historyPoint, 0, len(history))
	for _, s := range history {
		points = append(points, historyPoint{
			Date:          s.Date.Format("2006-01-02"),
			Close:         s.Close,
			Change:        s.Change,
			ChangePercent: s.ChangePercent,
			Volume:        s.Volume,
		})
	}

	respondJSON(w, http.StatusOK, stockHistoryResponse{
		Symbol: symbol,
		Days:   days,
		Count:  len(points),
		Data:   points,
	})
}
