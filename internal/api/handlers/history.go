package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const maxStoredDates = 365

// HistoryHandler serves the stored run history endpoints.
type HistoryHandler struct {
	summaries contracts.SummaryRepository
	logger    *logger.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(summaries contracts.SummaryRepository, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		summaries: summaries,
		logger:    log,
	}
}

// datesResponse lists the trade dates with stored summaries, newest first.
type datesResponse struct {
	Dates []string `json:"dates"`
	Count int      `json:"count"`
}

// GetDates returns all trade dates with a stored summary.
// GET /api/history/dates
func (h *HistoryHandler) GetDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dates, err := h.summaries.AvailableDates(ctx, maxStoredDates)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list summary dates")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve dates")
		return
	}
	if len(dates) == 0 {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, date := range dates {
		formatted = append(formatted, date.Format("2006-01-02"))
	}

	respondJSON(w, http.StatusOK, datesResponse{
		Dates: formatted,
		Count: len(formatted),
	})
}

// historySummaryResponse is a stored summary document with its trade date.
type historySummaryResponse struct {
	Date string `json:"date"`
	*contracts.SummaryDocument
}

// GetSummary returns the stored summary document for a trade date. With
// no date parameter the latest stored date is used.
// GET /api/history/summary?date=2025-07-03
func (h *HistoryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var date time.Time
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
			return
		}
		date = parsed
	} else {
		dates, err := h.summaries.AvailableDates(ctx, 1)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list summary dates")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve summary")
			return
		}
		if len(dates) == 0 {
			respondError(w, http.StatusNotFound, "No data available")
			return
		}
		date = dates[0]
	}

	doc, err := h.summaries.GetByDate(ctx, date)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("No summary for %s", date.Format("2006-01-02")))
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("date", date.Format("2006-01-02")).Error("Failed to get summary")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}

	respondJSON(w, http.StatusOK, historySummaryResponse{
		Date:            date.Format("2006-01-02"),
		SummaryDocument: doc,
	})
}
