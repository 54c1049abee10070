package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/internal/tracker"
)

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run one tracking pass in the foreground",
	Long: `Runs the full tracking pass once and prints the day's results.

The pass:
- resolves constituents for each configured index
- screens the universe and fetches quotes within the API rate limit
- analyzes the day and projects 5-day price targets
- evaluates alert rules
- exports CSV/Markdown/JSON and, when a database is configured,
  stores the run

Example:
  go run ./cmd/tracker track
  go run ./cmd/tracker track --indices "NASDAQ-100"
  go run ./cmd/tracker track --no-screening --export-dir /tmp/out`,
	RunE: runTrack,
}

var (
	// Track flags
	trackIndices     []string
	trackNoScreening bool
	trackExportDir   string
)

func init() {
	rootCmd.AddCommand(trackCmd)

	// Flags
	trackCmd.Flags().StringSliceVar(&trackIndices, "indices", nil, "indices to track (default: configured list)")
	trackCmd.Flags().BoolVar(&trackNoScreening, "no-screening", false, "fetch every constituent, skip screening")
	trackCmd.Flags().StringVar(&trackExportDir, "export-dir", "", "directory for file exports (default: DATA_DIR)")
}

func runTrack(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Market Day Tracker ===")

	// Initialize dependencies
	p, err := initPipeline(pipelineOptions{
		noScreening: trackNoScreening,
		indices:     trackIndices,
		exportDir:   trackExportDir,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	defer p.Close()

	fmt.Printf("\n📅 Date: %s\n", time.Now().Format("2006-01-02"))
	fmt.Printf("📈 Indices: %s\n", strings.Join(p.cfg.Tracker.Indices, ", "))
	fmt.Printf("⏱  Timeout: %s\n", p.cfg.Tracker.RefreshTimeout)
	if p.db == nil {
		PrintWarning("DATABASE_URL not set; results go to file exports only")
	}
	fmt.Println()

	// Ctrl+C cancels the run; the refresh timeout bounds it either way.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Tracker.RefreshTimeout)
	defer cancel()

	result, err := p.workflow.Run(ctx, printStage)
	if err != nil {
		return fmt.Errorf("tracking run failed: %w", err)
	}

	printRunResult(result)
	return nil
}

// printStage echoes workflow progress to the terminal.
func printStage(progress contracts.RefreshProgress) {
	switch progress.Stage {
	case "fetching":
		fmt.Printf("▶ Fetching %d indices...\n", progress.TotalIndices)
	case "analyzing":
		fmt.Printf("▶ Analyzing %d snapshots from %d indices...\n", progress.SymbolsFetched, progress.IndicesDone)
	case "projecting":
		fmt.Println("▶ Projecting 5-day price targets...")
	case "alerts":
		fmt.Println("▶ Evaluating alert rules...")
	case "persisting":
		fmt.Println("▶ Saving results...")
	}
}

func printRunResult(result *tracker.RunResult) {
	summary := result.Analysis.Summary

	fmt.Println()
	PrintSeparator()
	fmt.Printf("✅ Tracking run completed in %.1fs\n", result.Duration.Seconds())
	PrintSeparator()
	fmt.Println()

	fmt.Printf("Date: %s\n", result.Date.Format("2006-01-02"))
	fmt.Printf("Market: %d stocks | %d up / %d down / %d flat | avg %+.2f%%\n",
		summary.TotalStocks, summary.Gainers, summary.Losers, summary.Unchanged,
		summary.AverageChangePercent)
	fmt.Println(result.Narrative)

	if len(result.Analysis.IndexStats) > 0 {
		fmt.Println("\nIndices:")
		names := make([]string, 0, len(result.Analysis.IndexStats))
		for name := range result.Analysis.IndexStats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			stats := result.Analysis.IndexStats[name]
			fmt.Printf("  %-12s %3d stocks  avg %+.2f%%  volume %s\n",
				name, stats.StockCount, stats.AverageChangePercent, formatVolume(stats.TotalVolume))
		}
	}

	if len(result.Analysis.TopGainers) > 0 {
		fmt.Println("\nTop gainers:")
		for _, m := range result.Analysis.TopGainers {
			fmt.Printf("  %-6s %+7.2f%%  $%.2f\n", m.Symbol, m.ChangePercent, m.Close)
		}
	}
	if len(result.Analysis.TopLosers) > 0 {
		fmt.Println("\nTop losers:")
		for _, m := range result.Analysis.TopLosers {
			fmt.Printf("  %-6s %+7.2f%%  $%.2f\n", m.Symbol, m.ChangePercent, m.Close)
		}
	}
	if len(result.Analysis.TopVolume) > 0 {
		fmt.Println("\nMost traded:")
		for _, v := range result.Analysis.TopVolume {
			fmt.Printf("  %-6s %10s  %+7.2f%%\n", v.Symbol, formatVolume(v.Volume), v.ChangePercent)
		}
	}

	if result.Summary.TotalProjections > 0 {
		fmt.Printf("\nProjections: %d stocks, avg confidence %.1f%%, expected move %+.2f%%\n",
			result.Summary.TotalProjections, result.Summary.AverageConfidence,
			result.Summary.AverageExpectedChange)
		for _, rec := range contracts.AllRecommendations() {
			if count := result.Summary.Recommendations[rec]; count > 0 {
				fmt.Printf("  %-12s %d\n", rec, count)
			}
		}
	}

	if len(result.Events) > 0 {
		fmt.Println("\nAlerts fired:")
		for _, event := range result.Events {
			fmt.Printf("  🔔 %s: %s\n", event.AlertName, strings.Join(event.Symbols, ", "))
		}
	}
}
