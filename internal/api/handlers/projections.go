package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

const defaultOpportunityLimit = 10

// ProjectionsHandler serves the projection aggregate endpoints.
type ProjectionsHandler struct {
	projections contracts.ProjectionRepository
	snapshots   contracts.SnapshotRepository
	summaries   contracts.SummaryRepository
	logger      *logger.Logger
}

// NewProjectionsHandler creates a projections handler.
func NewProjectionsHandler(
	projections contracts.ProjectionRepository,
	snapshots contracts.SnapshotRepository,
	summaries contracts.SummaryRepository,
	log *logger.Logger,
) *ProjectionsHandler {
	return &ProjectionsHandler{
		projections: projections,
		snapshots:   snapshots,
		summaries:   summaries,
		logger:      log,
	}
}

// projectionSummaryResponse is the projections summary payload.
type projectionSummaryResponse struct {
	Date               string         `json:"date"`
	TargetDate         string         `json:"target_date"`
	TotalProjections   int            `json:"total_projections"`
	AverageConfidence  float64        `json:"average_confidence"`
	ExpectedMarketMove float64        `json:"expected_market_move"`
	Sentiment          string         `json:"sentiment"`
	Recommendations    map[string]int `json:"recommendations"`
	Trends             map[string]int `json:"trends"`
	RiskProfile        map[string]int `json:"risk_profile"`
}

// GetSummary returns the latest run's projection aggregate.
// GET /api/projections/summary
func (h *ProjectionsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dates, err := h.summaries.AvailableDates(ctx, 1)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list summary dates")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve projection summary")
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
		h.logger.WithError(err).Error("Failed to get summary document")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve projection summary")
		return
	}
	if doc.ProjectionSummary == nil {
		respondError(w, http.StatusNotFound, "No projection data available")
		return
	}
	summary := doc.ProjectionSummary

	// Recommendation keys go out in their query-parameter form, STRONG
	// BUY as STRONG_BUY.
	recommendations := make(map[string]int, len(summary.Recommendations))
	for rec, count := range summary.Recommendations {
		recommendations[strings.ReplaceAll(string(rec), " ", "_")] = count
	}
	trends := make(map[string]int, len(summary.Trends))
	for trend, count := range summary.Trends {
		trends[string(trend)] = count
	}
	riskProfile := make(map[string]int)
	for _, p := range doc.Projections {
		riskProfile[string(p.RiskLevel)]++
	}

	respondJSON(w, http.StatusOK, projectionSummaryResponse{
		Date:               dates[0].Format("2006-01-02"),
		TargetDate:         summary.ProjectionDate.Format("2006-01-02"),
		TotalProjections:   summary.TotalProjections,
		AverageConfidence:  summary.AverageConfidence,
		ExpectedMarketMove: summary.AverageExpectedChange,
		Sentiment:          marketSentiment(summary.AverageExpectedChange),
		Recommendations:    recommendations,
		Trends:             trends,
		RiskProfile:        riskProfile,
	})
}

// opportunityEntry is one row of the opportunities payload.
type opportunityEntry struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	CurrentPrice   float64 `json:"current_price"`
	TargetPrice    float64 `json:"target_price"`
	ExpectedChange float64 `json:"expected_change"`
	Confidence     int     `json:"confidence"`
	Risk           string  `json:"risk"`
	Trend          string  `json:"trend"`
	Reason         string  `json:"reason"`
	Volume         int64   `json:"volume"`
	Momentum       float64 `json:"momentum"`
	Volatility     float64 `json:"volatility"`
}

// opportunitiesResponse is the opportunities payload. Count is the total
// number of matches before the limit is applied.
type opportunitiesResponse struct {
	Date          string             `json:"date"`
	Type          string             `json:"type"`
	Count         int                `json:"count"`
	Opportunities []opportunityEntry `json:"opportunities"`
}

// GetOpportunities returns the latest projections carrying one
// recommendation, highest confidence first.
// GET /api/projections/opportunities?type=STRONG_BUY&limit=10
func (h *ProjectionsHandler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	typeParam := r.URL.Query().Get("type")
	if typeParam == "" {
		typeParam = "STRONG_BUY"
	}
	rec, ok := contracts.ParseRecommendation(typeParam)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid type (valid: STRONG_BUY, BUY, HOLD, SELL, STRONG_SELL)")
		return
	}

	limit := defaultOpportunityLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	date, err := h.snapshots.LatestDate(ctx)
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No data available")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest date")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve opportunities")
		return
	}

	projections, err := h.projections.GetByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get projections")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve opportunities")
		return
	}

	var matched []*contracts.Projection
	for _, p := range projections {
		if p.Recommendation == rec {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Confidence > matched[j].Confidence
	})

	total := len(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	volumes := h.volumeBySymbol(ctx, date)

	opportunities := make([]opportunityEntry, 0, len(matched))
	for _, p := range matched {
		opportunities = append(opportunities, opportunityEntry{
			Symbol:         p.Symbol,
			Name:           p.Name,
			CurrentPrice:   p.CurrentPrice,
			TargetPrice:    p.TargetMid,
			ExpectedChange: p.ExpectedChangePercent,
			Confidence:     p.Confidence,
			Risk:           string(p.RiskLevel),
			Trend:          string(p.Trend),
			Reason:         p.Reason,
			Volume:         volumes[p.Symbol],
			Momentum:       p.MomentumScore,
			Volatility:     p.VolatilityScore,
		})
	}

	respondJSON(w, http.StatusOK, opportunitiesResponse{
		Date:          date.Format("2006-01-02"),
		Type:          strings.ReplaceAll(string(rec), " ", "_"),
		Count:         total,
		Opportunities: opportunities,
	})
}

// volumeBySymbol joins the day's snapshot volumes onto projection rows.
// A failed lookup degrades to zero volumes.
func (h *ProjectionsHandler) volumeBySymbol(ctx context.Context, date time.Time) map[string]int64 {
	snapshots, err := h.snapshots.GetByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).Warn("Could not load snapshot volumes")
		return nil
	}
	volumes := make(map[string]int64, len(snapshots))
	for _, s := range snapshots {
		volumes[s.Symbol] = s.Volume
	}
	return volumes
}

// marketSentiment maps the average expected change to a market mood.
// The band here is wider than the one in the Markdown report.
func marketSentiment(avgExpected float64) string {
	switch {
	case avgExpected > 1.0:
		return "Bullish"
	case avgExpected < -1.0:
		return "Bearish"
	default:
		return "Neutral"
	}
}
