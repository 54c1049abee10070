package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/marketday/tracker/internal/api/handlers"
	"github.com/marketday/tracker/pkg/logger"
)

// NewRouter creates and configures the HTTP router. All dashboard routes
// live under /api; /health sits outside the prefix for probes.
func NewRouter(
	market *handlers.MarketHandler,
	projections *handlers.ProjectionsHandler,
	stocks *handlers.StockHandler,
	history *handlers.HistoryHandler,
	refresh *handlers.RefreshHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Market endpoints
	api.HandleFunc("/market/overview", market.GetOverview).Methods("GET")
	api.HandleFunc("/market/movers", market.GetMovers).Methods("GET")

	// Projection endpoints
	api.HandleFunc("/projections/summary", projections.GetSummary).Methods("GET")
	api.HandleFunc("/projections/opportunities", projections.GetOpportunities).Methods("GET")

	// Per-stock endpoints
	api.HandleFunc("/stocks/{symbol}", stocks.GetDetail).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/history", stocks.GetHistory).Methods("GET")

	// Stored history endpoints
	api.HandleFunc("/history/dates", history.GetDates).Methods("GET")
	api.HandleFunc("/history/summary", history.GetSummary).Methods("GET")

	// Refresh endpoints
	api.HandleFunc("/refresh", refresh.Trigger).Methods("POST")
	api.HandleFunc("/refresh/status", refresh.GetStatus).Methods("GET")
	api.HandleFunc("/refresh/ws", refresh.StreamStatus).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "tracker-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"success": false,
						"error":   "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
