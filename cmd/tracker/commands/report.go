package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/internal/storage"
	"github.com/marketday/tracker/pkg/database"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [date]",
	Short: "Print the Markdown projections report",
	Long: `Prints the Markdown projections report for a stored run.

The date argument is YYYY-MM-DD; without it the latest stored run is
used. Pipe the output to a file or a Markdown viewer.

Example:
  go run ./cmd/tracker report
  go run ./cmd/tracker report 2025-07-03
  go run ./cmd/tracker report > report.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 3. Resolve the report date
	ctx := cmd.Context()
	var date time.Time
	if len(args) == 1 {
		date, err = time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", args[0])
		}
	} else {
		dates, err := storage.NewSummaryRepository(db.Pool).AvailableDates(ctx, 1)
		if err != nil {
			return fmt.Errorf("list stored dates: %w", err)
		}
		if len(dates) == 0 {
			return fmt.Errorf("no stored runs")
		}
		date = dates[0]
	}

	// 4. Render the report
	stored, err := storage.NewProjectionRepository(db.Pool).GetByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("load projections for %s: %w", date.Format("2006-01-02"), err)
	}
	if len(stored) == 0 {
		return fmt.Errorf("no projections stored for %s", date.Format("2006-01-02"))
	}

	projections := make([]contracts.Projection, 0, len(stored))
	for _, p := range stored {
		projections = append(projections, *p)
	}

	fmt.Print(storage.ProjectionReport(projections, time.Now()))
	return nil
}
