// Command ciictl runs the seeding, enrichment and aggregation jobs from the
// command line.
//
// Usage:
//
//	ciictl seed countries
//	ciictl seed regions [--run-id ID]
//	ciictl enrich --type country --year 2022
//	ciictl recompute --year 2022 [--type region]
//	ciictl airquality [--countries DE,FR]
//
// --dry-run swaps the database for in-memory stores.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/EmpoweredVote/cii-backend/internal/app"
	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/db"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var dryRun bool

// newMetrics registers the collectors once per process.
var newMetrics = sync.OnceValue(observability.NewMetrics)

// env is populated by the root command's pre-run hook.
var env struct {
	cfg *config.Config
	log *slog.Logger
	app *app.App
	db  *gorm.DB
}

var rootCmd = &cobra.Command{
	Use:               "ciictl [command]",
	Short:             "Climate Inequality Index batch jobs",
	Long:              `Seed region boundaries, enrich them from external sources and recompute Climate Inequality Index scores.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Use in-memory stores instead of DATABASE_URL")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	opts := app.Options{
		Config:  cfg,
		Clock:   clockwork.NewRealClock(),
		Log:     logger,
		Metrics: newMetrics(),
	}
	if dryRun {
		logger.Info("dry run: using in-memory stores")
	} else {
		if err := cfg.Validate(); err != nil {
			return err
		}
		conn, err := db.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		if err := app.Migrate(conn); err != nil {
			return err
		}
		opts.DB = conn
		env.db = conn
	}

	a, err := app.New(opts)
	if err != nil {
		return err
	}
	env.cfg, env.log, env.app = cfg, logger, a
	return nil
}

func teardown() error {
	if env.app != nil {
		if err := env.app.Close(); err != nil {
			env.log.Warn("cache close error", "error", err)
		}
	}
	if env.db != nil {
		if sqlDB, err := env.db.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if terr := teardown(); terr != nil && env.log != nil {
		env.log.Warn("teardown error", "error", terr)
	}
	if err != nil {
		os.Exit(1)
	}
}
