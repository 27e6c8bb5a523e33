package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calderon/vaspdb/internal/config"
	"github.com/calderon/vaspdb/internal/drone"
	"github.com/calderon/vaspdb/internal/observability"
	"github.com/calderon/vaspdb/internal/store"
	"github.com/calderon/vaspdb/internal/walker"
)

var assimilateCmd = &cobra.Command{
	Use:   "assimilate <root-dir>",
	Short: "Assimilate every run directory under a tree",
	Long: `Walks a directory tree, classifies each directory (standard, two-stage,
killed, or NEB run), builds one canonical document per run, and upserts the
documents into the task database.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssimilate,
}

var (
	assimConfigPath  string
	assimDatabaseURL string
	assimSimulate    bool
	assimUpdateDups  bool
	assimParseDOS    bool
	assimWorkers     int
	assimTags        []string
	assimAuthor      string
	assimVerbose     bool
)

func init() {
	// Config file flag (processed first)
	assimilateCmd.Flags().StringVar(&assimConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	assimilateCmd.Flags().StringVar(&assimDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	assimilateCmd.Flags().BoolVar(&assimSimulate, "simulate", false, "Build documents but never touch the database")
	assimilateCmd.Flags().BoolVar(&assimUpdateDups, "update-duplicates", false, "Update already-stored directories instead of skipping them")
	assimilateCmd.Flags().BoolVar(&assimParseDOS, "parse-dos", false, "Capture density-of-states payloads from stage outputs")
	assimilateCmd.Flags().IntVarP(&assimWorkers, "workers", "w", 0, "Number of parallel workers (0 = one per CPU)")
	assimilateCmd.Flags().StringSliceVar(&assimTags, "tag", nil, "Provenance tag attached to every document (repeatable)")
	assimilateCmd.Flags().StringVar(&assimAuthor, "author", "", "Provenance author attached to every document")
	assimilateCmd.Flags().BoolVarP(&assimVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(assimilateCmd)
}

// loadMergedConfig loads an optional config file and merges its values
// under the supplied flag values.
func loadMergedConfig(path string, flags config.Config) (config.Config, error) {
	if path == "" {
		if flags.DatabaseURL == "" {
			flags.DatabaseURL = os.Getenv("DATABASE_URL")
		}
		merged := flags.MergeWithDefaults(config.Config{})
		return merged, merged.Validate()
	}

	loaded, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return config.Config{}, err
	}

	merged := flags.MergeWithDefaults(*loaded)
	if merged.DatabaseURL == "" && merged.DSN() == "" {
		merged.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return merged, merged.Validate()
}

func runAssimilate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(assimConfigPath, config.Config{
		DatabaseURL: assimDatabaseURL,
		Tags:        assimTags,
		Author:      assimAuthor,
		Workers:     assimWorkers,
	})
	if err != nil {
		return err
	}
	cfg.Simulate = cfg.Simulate || assimSimulate
	cfg.UpdateDuplicates = cfg.UpdateDuplicates || assimUpdateDups
	cfg.ParseDOS = cfg.ParseDOS || assimParseDOS
	cfg.Verbose = cfg.Verbose || assimVerbose

	log, err := observability.NewLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // stdout sync failure is harmless

	var st store.Store
	if !cfg.Simulate {
		dsn := cfg.DSN()
		if dsn == "" {
			return fmt.Errorf("no database configured; set --db-url, DATABASE_URL, or use --simulate")
		}
		pg, err := store.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
		st = pg
	}

	d := drone.NewDrone(st, nil, log, drone.Options{
		Simulate:         cfg.Simulate,
		UpdateDuplicates: cfg.UpdateDuplicates,
		ParseDOS:         cfg.ParseDOS,
		AdditionalFields: cfg.AdditionalFields,
		Tags:             cfg.Tags,
		Author:           cfg.Author,
	})

	report, err := walker.New(d, log, cfg.Workers).Walk(ctx, args[0])
	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintReport(report.Succeeded, report.Failed, report.Skipped)
	for state, n := range report.States {
		fmt.Fprintf(os.Stdout, "  %s: %d\n", state, n)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d directories failed to assimilate", report.Failed)
	}
	return nil
}
