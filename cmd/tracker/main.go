package main

import (
	"os"

	"github.com/marketday/tracker/cmd/tracker/commands"
)

// main is the entry point for the tracker CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
