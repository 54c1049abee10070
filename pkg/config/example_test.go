package config_test

import (
	"fmt"
	"os"

	"github.com/marketday/tracker/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	os.Setenv("FINNHUB_API_KEY", "demo")
	defer os.Unsetenv("FINNHUB_API_KEY")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Tracked indices: %d\n", len(cfg.Tracker.Indices))
	fmt.Printf("Finnhub quota: %d calls/min\n", cfg.Finnhub.CallsPerMinute)
}
