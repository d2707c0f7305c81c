// Package app wires the stores, sources and jobs shared by the HTTP server
// and the ciictl command.
package app

import (
	"fmt"
	"log/slog"

	"github.com/EmpoweredVote/cii-backend/internal/airquality"
	"github.com/EmpoweredVote/cii-backend/internal/cii"
	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/enrichment"
	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/progress"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/seeding"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
	"github.com/EmpoweredVote/cii-backend/internal/sources/openaq"
	"github.com/EmpoweredVote/cii-backend/internal/sources/worldbank"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options selects the backing stores. A nil DB uses in-memory stores.
type Options struct {
	Config  *config.Config
	DB      *gorm.DB
	Clock   clockwork.Clock
	Log     *slog.Logger
	Metrics *observability.Metrics
}

type App struct {
	Regions    regions.Store
	Progress   *progress.Coordinator
	Loader     *seeding.Loader
	Enricher   *enrichment.Engine
	Recomputer *cii.Engine
	AirQuality *airquality.Ingester

	redis *redis.Client
}

// Migrate creates the PostGIS extension and every table.
func Migrate(d *gorm.DB) error {
	if err := regions.Migrate(d); err != nil {
		return fmt.Errorf("migrate regions: %w", err)
	}
	if err := progress.Migrate(d); err != nil {
		return fmt.Errorf("migrate progress: %w", err)
	}
	return nil
}

func New(opts Options) (*App, error) {
	cfg, log, metrics, clock := opts.Config, opts.Log, opts.Metrics, opts.Clock

	var (
		regionStore   regions.Store
		progressStore progress.Store
	)
	if opts.DB != nil {
		regionStore = regions.NewGormStore(opts.DB, clock)
		progressStore = progress.NewGormStore(opts.DB)
	} else {
		regionStore = regions.NewMemoryStore(clock)
		progressStore = progress.NewMemoryStore()
	}

	profiles, err := seeding.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return nil, err
	}

	boundaryHTTP := sources.NewHTTPClient(cfg.BoundaryTimeout, log, metrics)
	sourceHTTP := sources.NewHTTPClient(cfg.SourceTimeout, log, metrics)

	wb := worldbank.NewClient(sourceHTTP, cfg.WorldBankBaseURL)
	aq := openaq.NewClient(sourceHTTP, cfg.OpenAQBaseURL, cfg.OpenAQAPIKey, clock).WithLookback(cfg.AirQualityLookback)

	src := enrichment.Sources{Demographics: wb, AirQuality: aq, Climate: wb}

	rdb := sources.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		kv := sources.NewRedisKV(rdb)
		copts := sources.CacheOptions{TTL: cfg.CacheTTL, Log: log, Metrics: metrics}
		src.Demographics = sources.NewCachedDemographics(wb, kv, copts)
		src.Climate = sources.NewCachedClimate(wb, kv, copts)
		src.AirQuality = sources.NewCachedAirQuality(aq, kv, copts)
		log.Info("source cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	return &App{
		Regions:  regionStore,
		Progress: progress.NewCoordinator(progressStore, clock, log),
		Loader: seeding.NewLoader(regionStore,
			seeding.NewBoundarySource(boundaryHTTP, cfg.CountryBoundariesURL),
			seeding.NewBoundarySource(boundaryHTTP, cfg.RegionBoundariesURL),
			geo.DefaultCodeTable(), profiles,
			seeding.LoaderConfig{Years: cfg.SeedYears, Policy: cfg.ReseedPolicy},
			clock, log, metrics),
		Enricher: enrichment.NewEngine(regionStore, src, enrichment.Config{
			BatchSize:     cfg.EnrichBatchSize,
			Delay:         cfg.EnrichDelay,
			Lease:         cfg.EnrichLease,
			RegionTimeout: cfg.EnrichRegionTimeout,
			Concurrency:   cfg.EnrichConcurrency,
		}, log, metrics),
		Recomputer: cii.NewEngine(regionStore, cii.EngineConfig{
			ChunkSize: cfg.RecomputeChunkSize,
			Pause:     cfg.RecomputePause,
		}, clock, log, metrics),
		// ingestion always reads fresh measurements
		AirQuality: airquality.NewIngester(regionStore, aq, log),
		redis:      rdb,
	}, nil
}

// Close releases the cache connection.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
