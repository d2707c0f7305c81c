// Package enrichment replaces placeholder metrics on synthetic region
// records with values from external sources.
//
// Work is claimed through a lease: a batch marks the records it picked so
// that concurrent batches skip them. A record that gained at least one real
// metric loses its Synthetic tag and its lease. A record that gained nothing
// keeps its lease until it expires, so a full pass terminates even when a
// source has no data for some regions.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/EmpoweredVote/cii-backend/internal/stats"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Store is the slice of the region store enrichment needs.
type Store interface {
	LeaseSynthetic(ctx context.Context, t regions.RegionType, year, limit int, ttl time.Duration) ([]regions.Record, error)
	CountSynthetic(ctx context.Context, t regions.RegionType, year int) (int64, error)
	ApplyEnrichment(ctx context.Context, id uint64, patch regions.Metrics, sources []string) error
}

// Sources are the metric providers. A nil source is skipped.
type Sources struct {
	Demographics sources.DemographicsSource
	AirQuality   sources.AirQualitySource
	Climate      sources.ClimateSource
}

type Config struct {
	BatchSize     int
	Delay         time.Duration // minimum spacing between region starts
	Lease         time.Duration
	RegionTimeout time.Duration
	Concurrency   int
}

// BatchResult reports one EnrichBatch call.
type BatchResult struct {
	RegionType     regions.RegionType `json:"region_type"`
	Year           int                `json:"year"`
	Enriched       int                `json:"enriched"`
	Failed         int                `json:"failed"`
	NoData         int                `json:"no_data"`
	Leased         int                `json:"leased"`
	Remaining      int64              `json:"remaining"`
	ShouldContinue bool               `json:"should_continue"`
	Complete       bool               `json:"complete"`
}

// RunSummary totals a full pass.
type RunSummary struct {
	RegionType regions.RegionType `json:"region_type"`
	Year       int                `json:"year"`
	Batches    int                `json:"batches"`
	Enriched   int                `json:"enriched"`
	Failed     int                `json:"failed"`
	NoData     int                `json:"no_data"`
	Remaining  int64              `json:"remaining"`
	Complete   bool               `json:"complete"`
}

type outcome string

const (
	outcomeEnriched outcome = "enriched"
	outcomeFailed   outcome = "failed"
	outcomeNoData   outcome = "no_data"
)

type Engine struct {
	store   Store
	src     Sources
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewEngine(store Store, src Sources, cfg Config, log *slog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Engine{
		store:   store,
		src:     src,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("component", "enrichment"),
		metrics: metrics,
	}
}

// EnrichBatch leases up to BatchSize synthetic records of the type and year
// and enriches each one. Only a failed lease query is returned as an error;
// per-region problems are counted in the result.
func (e *Engine) EnrichBatch(ctx context.Context, t regions.RegionType, year int) (BatchResult, error) {
	res := BatchResult{RegionType: t, Year: year}

	recs, err := e.store.LeaseSynthetic(ctx, t, year, e.cfg.BatchSize, e.cfg.Lease)
	if err != nil {
		return res, fmt.Errorf("enrich %s %d: lease: %w", t, year, err)
	}
	res.Leased = len(recs)
	e.log.Info("enrichment batch leased", "region_type", t, "year", year, "leased", res.Leased)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i := range recs {
		rec := &recs[i]
		if err := e.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			out := e.enrichRegion(gctx, rec)
			e.metrics.EnrichedRegions.WithLabelValues(string(out)).Inc()
			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeEnriched:
				res.Enriched++
			case outcomeNoData:
				res.NoData++
			default:
				res.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	remaining, err := e.store.CountSynthetic(ctx, t, year)
	if err != nil {
		// next lease settles whether work is left
		e.log.Warn("remaining count failed", "region_type", t, "year", year, "error", err)
		res.Remaining = -1
		res.ShouldContinue = res.Leased > 0
		return res, nil
	}
	res.Remaining = remaining
	res.Complete = remaining == 0
	res.ShouldContinue = remaining > 0 && res.Leased > 0
	e.metrics.EnrichRemaining.WithLabelValues(string(t)).Set(float64(remaining))

	e.log.Info("enrichment batch finished",
		"region_type", t,
		"year", year,
		"enriched", res.Enriched,
		"failed", res.Failed,
		"no_data", res.NoData,
		"remaining", res.Remaining,
	)
	return res, nil
}

// Run calls EnrichBatch until no further batch can make progress.
func (e *Engine) Run(ctx context.Context, t regions.RegionType, year int) (RunSummary, error) {
	sum := RunSummary{RegionType: t, Year: year}
	for {
		res, err := e.EnrichBatch(ctx, t, year)
		if err != nil {
			return sum, err
		}
		sum.Batches++
		sum.Enriched += res.Enriched
		sum.Failed += res.Failed
		sum.NoData += res.NoData
		sum.Remaining = res.Remaining
		sum.Complete = res.Complete
		if !res.ShouldContinue {
			return sum, nil
		}
	}
}

// enrichRegion fetches the three metric groups independently, using the
// parent country's code for sub-national records.
func (e *Engine) enrichRegion(ctx context.Context, rec *regions.Record) outcome {
	if e.cfg.RegionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RegionTimeout)
		defer cancel()
	}
	code := regions.ParentCode(rec.RegionCode)
	log := e.log.With("region_code", rec.RegionCode, "year", rec.DataYear)

	var (
		patch regions.Metrics
		tags  []string
		errs  []error
	)
	used := func(tag string) {
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}

	if src := e.src.Demographics; src != nil {
		d, err := src.FetchDemographics(ctx, code, rec.DataYear)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("demographics: %w", err))
		case !d.IsEmpty():
			patch.Population = d.Population
			patch.GDPPerCapita = d.GDPPerCapita
			patch.UrbanPopulationPercent = d.UrbanPopulationPercent
			used(src.Tag())
		}
	}

	if src := e.src.AirQuality; src != nil {
		for _, pollutant := range []string{sources.PollutantPM25, sources.PollutantNO2} {
			values, err := src.FetchMeasurements(ctx, code, pollutant)
			if err != nil {
				errs = append(errs, fmt.Errorf("air quality %s: %w", pollutant, err))
				continue
			}
			mean, ok := stats.TrimmedMean(values)
			if !ok {
				continue
			}
			v := regions.Float(stats.Round(mean, 2))
			if pollutant == sources.PollutantPM25 {
				patch.AirQualityPM25 = v
			} else {
				patch.AirQualityNO2 = v
			}
			used(src.Tag())
		}
	}

	if src := e.src.Climate; src != nil {
		p, err := src.FetchPrecipitation(ctx, code, rec.DataYear)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("climate: %w", err))
		case p != nil:
			patch.PrecipitationAvg = p
			used(src.Tag())
		}
	}

	joined := errors.Join(errs...)
	if patch.IsEmpty() {
		if joined != nil {
			log.Warn("region enrichment failed", "error", joined)
			return outcomeFailed
		}
		log.Debug("no source data for region")
		return outcomeNoData
	}
	if joined != nil {
		log.Warn("region partially enriched", "error", joined)
	}

	if err := e.store.ApplyEnrichment(ctx, rec.ID, patch, tags); err != nil {
		log.Error("enrichment write failed", "error", err)
		return outcomeFailed
	}
	log.Debug("region enriched", "sources", tags)
	return outcomeEnriched
}
