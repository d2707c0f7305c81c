package main

import (
	"fmt"
	"strings"

	"github.com/EmpoweredVote/cii-backend/internal/cii"
	"github.com/EmpoweredVote/cii-backend/internal/enrichment"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/spf13/cobra"
)

var (
	enrichType    string
	recomputeType string
	jobYears      []int
	aqCountries   []string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Replace synthetic metrics with source data until no batch makes progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, ok := regions.ParseType(enrichType)
		if !ok {
			return fmt.Errorf("--type must be country or region, got %q", enrichType)
		}
		var out []enrichment.RunSummary
		for _, year := range years() {
			sum, err := env.app.Enricher.Run(cmd.Context(), t, year)
			out = append(out, sum)
			if err != nil {
				_ = printJSON(cmd, out)
				return err
			}
		}
		return printJSON(cmd, out)
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute CII components and composite scores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var t regions.RegionType
		if recomputeType != "" {
			var ok bool
			if t, ok = regions.ParseType(recomputeType); !ok {
				return fmt.Errorf("--type must be country or region, got %q", recomputeType)
			}
		}
		var out []cii.Summary
		for _, year := range years() {
			sum, err := env.app.Recomputer.Recompute(cmd.Context(), year, t)
			out = append(out, sum)
			if err != nil {
				_ = printJSON(cmd, out)
				return err
			}
		}
		return printJSON(cmd, out)
	},
}

var airQualityCmd = &cobra.Command{
	Use:   "airquality",
	Short: "Refresh PM2.5 and NO2 for the configured countries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		codes := env.cfg.AirQualityCountries
		if len(aqCountries) > 0 {
			codes = nil
			for _, c := range aqCountries {
				codes = append(codes, strings.ToUpper(strings.TrimSpace(c)))
			}
		}
		sum, err := env.app.AirQuality.Run(cmd.Context(), codes)
		if perr := printJSON(cmd, sum); perr != nil {
			return perr
		}
		return err
	},
}

// years returns --year, or every configured seed year.
func years() []int {
	if len(jobYears) > 0 {
		return jobYears
	}
	return env.cfg.SeedYears
}

func init() {
	rootCmd.AddCommand(enrichCmd, recomputeCmd, airQualityCmd)

	enrichCmd.Flags().StringVarP(&enrichType, "type", "t", string(regions.TypeCountry), "Region type: country or region")
	enrichCmd.Flags().IntSliceVarP(&jobYears, "year", "y", nil, "Data year(s) (default: SEED_YEARS)")

	recomputeCmd.Flags().StringVarP(&recomputeType, "type", "t", "", "Region type: country or region (default: both)")
	recomputeCmd.Flags().IntSliceVarP(&jobYears, "year", "y", nil, "Data year(s) (default: SEED_YEARS)")

	airQualityCmd.Flags().StringSliceVar(&aqCountries, "countries", nil, "Country codes (default: AIRQUALITY_COUNTRIES)")
}
