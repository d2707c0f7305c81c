// Package airquality refreshes the pollutant columns of configured countries
// from recent measurements, independently of the enrichment work queue.
package airquality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/EmpoweredVote/cii-backend/internal/stats"
)

// Store is the slice of the region store ingestion writes through.
type Store interface {
	PatchByCode(ctx context.Context, code string, patch regions.Metrics) (int64, error)
}

// Summary reports one ingestion run.
type Summary struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	NoData     []string `json:"no_data,omitempty"`
}

type Ingester struct {
	store Store
	src   sources.AirQualitySource
	log   *slog.Logger
}

func NewIngester(store Store, src sources.AirQualitySource, log *slog.Logger) *Ingester {
	return &Ingester{store: store, src: src, log: log.With("component", "airquality")}
}

// Run fetches PM2.5 and NO2 for each country code, reduces the measurements
// with a trimmed mean and patches every stored year of that code. A country
// with no measurements is skipped without counting as a failure.
func (in *Ingester) Run(ctx context.Context, codes []string) (Summary, error) {
	var sum Summary
	in.log.Info("air quality ingestion starting", "countries", len(codes))

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		code = strings.ToUpper(strings.TrimSpace(code))

		patch, err := in.fetch(ctx, code)
		if err != nil && patch.IsEmpty() {
			sum.Failed++
			in.log.Warn("air quality fetch failed", "region_code", code, "error", err)
			continue
		}
		if patch.IsEmpty() {
			sum.NoData = append(sum.NoData, code)
			in.log.Info("no air quality measurements", "region_code", code)
			continue
		}

		if err != nil {
			in.log.Warn("air quality partially fetched", "region_code", code, "error", err)
		}

		n, err := in.store.PatchByCode(ctx, code, patch)
		if err != nil {
			sum.Failed++
			in.log.Error("air quality write failed", "region_code", code, "error", err)
			continue
		}
		sum.Successful++
		in.log.Info("air quality updated", "region_code", code, "rows", n)
	}

	in.log.Info("air quality ingestion finished", "successful", sum.Successful, "failed", sum.Failed, "no_data", len(sum.NoData))
	return sum, nil
}

func (in *Ingester) fetch(ctx context.Context, code string) (regions.Metrics, error) {
	var (
		patch regions.Metrics
		errs  []error
	)
	for _, pollutant := range []string{sources.PollutantPM25, sources.PollutantNO2} {
		values, err := in.src.FetchMeasurements(ctx, code, pollutant)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pollutant, err))
			continue
		}
		mean, ok := stats.TrimmedMean(values)
		if !ok {
			continue
		}
		v := regions.Float(stats.Round(mean, 2))
		switch pollutant {
		case sources.PollutantPM25:
			patch.AirQualityPM25 = v
		case sources.PollutantNO2:
			patch.AirQualityNO2 = v
		}
	}
	return patch, errors.Join(errs...)
}
