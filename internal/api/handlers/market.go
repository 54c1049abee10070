package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const (
	defaultMoverLimit = 10
	maxMoverLimit     = 50
)

// MarketHandler serves the market-wide dashboard endpoints.
type MarketHandler struct {
	snapshots contracts.SnapshotRepository
	summaries contracts.SummaryRepository
	logger    *logger.Logger
}

// NewMarketHandler creates a market handler.
func NewMarketHandler(
	snapshots contracts.SnapshotRepository,
	summaries contracts.SummaryRepository,
	log *logger.Logger,
) *MarketHandler {
	return &MarketHandler{
		snapshots: snapshots,
		summaries: summaries,
		logger:    log,
	}
}

// overviewResponse is the market overview payload.
type overviewResponse struct {
	Date    string                          `json:"date"`
	Summary contracts.MarketStats           `json:"summary"`
	Indices map[string]contracts.IndexStats `json:"indices"`
}

// GetOverview returns the latest market summary and index comparison.
// GET /api/market/overview
func (h *MarketHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dates, err := h.summaries.AvailableDates(ctx, 1)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list summary dates")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve market overview")
		return
	}
	if len(dates) == 0 {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}

	doc, err := h.summaries.GetByDate(ctx, dates[0])
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get market summary")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve market overview")
		return
	}
	if doc.Analysis == nil {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}

	indices := doc.IndexComparison
	if len(indices) == 0 {
		indices = doc.Analysis.IndexStats
	}

	respondJSON(w, http.StatusOK, overviewResponse{
		Date:    dates[0].Format("2006-01-02"),
		Summary: doc.Analysis.Summary,
		Indices: indices,
	})
}

// moverEntry is one row of the movers payload.
type moverEntry struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
}

// moversResponse is the movers payload.
type moversResponse struct {
	Date   string       `json:"date"`
	Type   string       `json:"type"`
	Count  int          `json:"count"`
	Movers []moverEntry `json:"movers"`
}

// GetMovers returns the day's top gainers, losers, or volume leaders.
// GET /api/market/movers?type=gainers&limit=10
func (h *MarketHandler) GetMovers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	moverType := r.URL.Query().Get("type")
	if moverType == "" {
		moverType = "gainers"
	}
	if moverType != "gainers" && moverType != "losers" && moverType != "volume" {
		respondError(w, http.StatusBadRequest, "Invalid type (valid: gainers, losers, volume)")
		return
	}

	limit := defaultMoverLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxMoverLimit {
		limit = maxMoverLimit
	}

	date, err := h.snapshots.LatestDate(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest date")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve movers")
		return
	}

	snapshots, err := h.snapshots.GetByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve movers")
		return
	}

	switch moverType {
	case "gainers":
		sort.SliceStable(snapshots, func(i, j int) bool {
			return snapshots[i].ChangePercent > snapshots[j].ChangePercent
		})
	case "losers":
		sort.SliceStable(snapshots, func(i, j int) bool {
			return snapshots[i].ChangePercent < snapshots[j].ChangePercent
		})
	case "volume":
		sort.SliceStable(snapshots, func(i, j int) bool {
			return snapshots[i].Volume > snapshots[j].Volume
		})
	}
	if len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}

	movers := make([]moverEntry, 0, len(snapshots))
	for _, s := range snapshots {
		movers = append(movers, moverEntry{
			Symbol:        s.Symbol,
			Name:          s.Name,
			Price:         s.Close,
			Change:        s.Change,
			ChangePercent: s.ChangePercent,
			Volume:        s.Volume,
		})
	}

	respondJSON(w, http.StatusOK, moversResponse{
		Date:   date.Format("2006-01-02"),
		Type:   moverType,
		Count:  len(movers),
		Movers: movers,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
