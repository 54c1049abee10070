package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketday/tracker/internal/external/indexsource"
	"github.com/marketday/tracker/pkg/logger"
	"github.com/marketday/tracker/pkg/redis"
)

// symbolsCmd represents the symbols command
var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Print index constituents",
	Long: `Prints the constituent symbols of an index.

Constituents come from the cache when fresh, otherwise from a live
scrape with a static fallback list.

Known indices: S&P 500, NASDAQ-100, Dow Jones.

Example:
  go run ./cmd/tracker symbols
  go run ./cmd/tracker symbols --index "Dow Jones"`,
	RunE: runSymbols,
}

// Symbols flags
var symbolsIndex string

func init() {
	rootCmd.AddCommand(symbolsCmd)

	// Flags
	symbolsCmd.Flags().StringVar(&symbolsIndex, "index", indexsource.SP500, "index name")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to Redis (no-op when disabled)
	rds, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rds.Close()

	// 4. Resolve constituents
	source := newConstituentSource(cfg, rds, log)
	symbols, err := source.Symbols(cmd.Context(), symbolsIndex)
	if err != nil {
		return fmt.Errorf("resolve constituents: %w", err)
	}

	fmt.Printf("%s constituents (%d):\n\n", indexsource.Canonicalize(symbolsIndex), len(symbols))
	for i, symbol := range symbols {
		fmt.Printf("%-8s", symbol)
		if (i+1)%8 == 0 {
			fmt.Println()
		}
	}
	if len(symbols)%8 != 0 {
		fmt.Println()
	}

	return nil
}
