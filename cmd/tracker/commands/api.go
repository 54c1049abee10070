package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketday/tracker/internal/api"
	"github.com/marketday/tracker/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the dashboard API server",
	Long: `Starts the HTTP API server backing the dashboard.

Endpoints:
- GET  /health                        - health check
- GET  /api/market/overview           - latest market summary
- GET  /api/market/movers             - top gainers/losers/volume
- GET  /api/projections/summary       - projection aggregate
- GET  /api/projections/opportunities - buy/sell picks
- GET  /api/stocks/{symbol}           - stock detail
- GET  /api/stocks/{symbol}/history   - price history
- GET  /api/history/dates             - stored run dates
- GET  /api/history/summary           - summary for a date
- POST /api/refresh                   - trigger a tracking run
- GET  /api/refresh/status            - refresh status
- GET  /api/refresh/ws                - refresh status stream

Example:
  go run ./cmd/tracker api
  go run ./cmd/tracker api --port 8085`,
	RunE: runAPIServer,
}

// API flags
var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "server port (default: PORT or 8085)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Market Day Tracker API ===")

	// 1. Wire the tracking pipeline (the refresh endpoint drives it)
	p, err := initPipeline(pipelineOptions{requireDB: true})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	defer p.Close()

	if apiPort != "" {
		p.cfg.Port = apiPort
	}

	// 2. Create handlers, router and server
	server := buildAPIServer(p)

	// 3. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			p.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", p.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("Server stopped")

	return nil
}

// buildAPIServer assembles handlers, router and server on top of a
// wired pipeline. The scheduler command reuses it for --with-api.
func buildAPIServer(p *pipeline) *api.Server {
	market := handlers.NewMarketHandler(p.snapshots, p.summaries, p.log)
	projections := handlers.NewProjectionsHandler(p.projections, p.snapshots, p.summaries, p.log)
	stocks := handlers.NewStockHandler(p.snapshots, p.projections, p.log)
	history := handlers.NewHistoryHandler(p.summaries, p.log)
	refreshStatus := handlers.NewRefreshHandler(p.supervisor, p.log)

	router := api.NewRouter(market, projections, stocks, history, refreshStatus, p.log)
	return api.New(p.cfg, p.log, router)
}
