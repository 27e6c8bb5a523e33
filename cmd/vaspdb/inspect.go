package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calderon/vaspdb/internal/drone"
	"github.com/calderon/vaspdb/internal/observability"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <run-dir>",
	Short: "Build and print the document for one run directory",
	Long:  "Classifies a single run directory and prints the document it would produce, without touching the database. Useful for checking a run before a batch assimilation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var (
	inspectParseDOS bool
	inspectJSON     bool
	inspectVerbose  bool
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectParseDOS, "parse-dos", false, "Capture density-of-states payloads from stage outputs")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the full document as JSON instead of a summary")
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	log, err := observability.NewLogger(inspectVerbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // stdout sync failure is harmless

	d := drone.NewDrone(nil, nil, log, drone.Options{
		Simulate: true,
		ParseDOS: inspectParseDOS,
	})

	res, err := d.Assimilate(context.Background(), args[0])
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("%s is not a run directory", args[0])
	}

	printer := observability.NewPrinter(os.Stdout)
	if inspectJSON {
		printer.PrintDocumentJSON(res.Document)
	} else {
		printer.PrintDocument(res.Document)
	}
	return nil
}
