// Package main provides the vaspdb CLI: assimilation of simulation run
// directories into the task database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vaspdb",
	Short: "VASP run assimilation pipeline",
	Long:  "vaspdb scans directory trees of VASP simulation runs, classifies each directory, merges multi-stage output into one canonical document per run, and upserts the documents into a task database under a deduplication policy.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
