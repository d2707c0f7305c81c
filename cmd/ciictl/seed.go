package main

import (
	"github.com/EmpoweredVote/cii-backend/internal/progress"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var seedRunID string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load boundary datasets and write placeholder region records",
}

var seedCountriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Seed country records and start a new progress run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		run, err := env.app.Progress.Start(ctx)
		if err != nil {
			return err
		}
		sum, err := env.app.Loader.SeedCountries(ctx, run)
		if perr := printJSON(cmd, sum); perr != nil {
			return perr
		}
		return err
	},
}

var seedRegionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Seed sub-national records, continuing a progress run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		run, err := resumeRun(cmd)
		if err != nil {
			return err
		}
		sum, err := env.app.Loader.SeedRegions(ctx, run)
		if perr := printJSON(cmd, sum); perr != nil {
			return perr
		}
		return err
	},
}

var seedAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Seed countries, then regions, in one run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		run, err := env.app.Progress.Start(ctx)
		if err != nil {
			return err
		}
		countries, err := env.app.Loader.SeedCountries(ctx, run)
		if err != nil {
			_ = printJSON(cmd, countries)
			return err
		}
		subdivisions, err := env.app.Loader.SeedRegions(ctx, run)
		if perr := printJSON(cmd, map[string]any{"countries": countries, "regions": subdivisions}); perr != nil {
			return perr
		}
		return err
	},
}

func resumeRun(cmd *cobra.Command) (*progress.Run, error) {
	if seedRunID == "" {
		return env.app.Progress.ResumeLatest(cmd.Context())
	}
	id, err := uuid.Parse(seedRunID)
	if err != nil {
		return nil, err
	}
	return env.app.Progress.Resume(cmd.Context(), id)
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedCountriesCmd, seedRegionsCmd, seedAllCmd)

	seedRegionsCmd.Flags().StringVar(&seedRunID, "run-id", "", "Progress run to continue (default: most recent)")
}
