// Package seeding loads country and sub-national boundary datasets and
// writes one placeholder region record per region and target year.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/EmpoweredVote/cii-backend/internal/cii"
	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/progress"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
)

// DefaultChunkSize is the number of features written between progress updates.
const DefaultChunkSize = 5

// Natural Earth property keys, in lookup order.
var (
	countryCodeKeys   = []string{"ISO_A3", "ADM0_A3", "ISO_A3_EH"}
	countryNameKeys   = []string{"NAME", "ADMIN", "NAME_LONG"}
	regionCodeKeys    = []string{"iso_3166_2"}
	regionNameKeys    = []string{"name", "name_en", "gn_name"}
	regionCountryKeys = []string{"admin", "geonunit"}
)

const regionParentKey = "adm0_a3"

var subdivisionPattern = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{1,4}$`)

// Store is the slice of the region store the loader writes through.
type Store interface {
	UpsertSeed(ctx context.Context, rec *regions.Record, policy config.ReseedPolicy) (regions.UpsertOutcome, error)
}

// Summary reports one seeding invocation. Feature counters count features;
// write counters count (region, year) records.
type Summary struct {
	RunID            uuid.UUID          `json:"run_id"`
	RegionType       regions.RegionType `json:"region_type"`
	Features         int                `json:"features"`
	SkippedUnmapped  int                `json:"skipped_unmapped"`
	FailedGeometry   int                `json:"failed_geometry"`
	Written          int                `json:"written"`
	Skipped          int                `json:"skipped"`
	ValidationFailed int                `json:"validation_failed"`
	WriteFailed      int                `json:"write_failed"`
}

func (s Summary) details() map[string]any {
	return map[string]any{
		"region_type":       string(s.RegionType),
		"features":          s.Features,
		"skipped_unmapped":  s.SkippedUnmapped,
		"failed_geometry":   s.FailedGeometry,
		"written":           s.Written,
		"skipped":           s.Skipped,
		"validation_failed": s.ValidationFailed,
		"write_failed":      s.WriteFailed,
	}
}

// LoaderConfig carries the seeding settings.
type LoaderConfig struct {
	Years     []int
	Policy    config.ReseedPolicy
	ChunkSize int
}

// Loader seeds region records from boundary datasets.
type Loader struct {
	store     Store
	countries BoundarySource
	regions   BoundarySource
	codes     *geo.CodeTable
	profiles  *Profiles
	cfg       LoaderConfig
	clock     clockwork.Clock
	log       *slog.Logger
	metrics   *observability.Metrics
}

func NewLoader(
	store Store,
	countries, subdivisions BoundarySource,
	codes *geo.CodeTable,
	profiles *Profiles,
	cfg LoaderConfig,
	clock clockwork.Clock,
	log *slog.Logger,
	metrics *observability.Metrics,
) *Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Policy == "" {
		cfg.Policy = config.ReseedPreserve
	}
	return &Loader{
		store:     store,
		countries: countries,
		regions:   subdivisions,
		codes:     codes,
		profiles:  profiles,
		cfg:       cfg,
		clock:     clock,
		log:       log.With("component", "seeding"),
		metrics:   metrics,
	}
}

// identity is what a feature contributes besides its geometry.
type identity struct {
	code    string
	name    string
	country string
}

// stage describes one of the two seeding passes.
type stage struct {
	regionType regions.RegionType
	source     BoundarySource
	start      progress.Status
	done       progress.Status
	identify   func(props map[string]any) (identity, bool)
	counters   func(total, processed int) progress.Update
}

// SeedCountries runs the country pass and leaves the run at
// countries_complete.
func (l *Loader) SeedCountries(ctx context.Context, run *progress.Run) (Summary, error) {
	return l.seed(ctx, run, stage{
		regionType: regions.TypeCountry,
		source:     l.countries,
		start:      progress.StatusCountries,
		done:       progress.StatusCountriesComplete,
		identify:   l.identifyCountry,
		counters: func(total, processed int) progress.Update {
			return progress.Update{TotalCountries: total, ProcessedCountries: processed}
		},
	})
}

// SeedRegions runs the sub-national pass and leaves the run completed.
func (l *Loader) SeedRegions(ctx context.Context, run *progress.Run) (Summary, error) {
	return l.seed(ctx, run, stage{
		regionType: regions.TypeRegion,
		source:     l.regions,
		start:      progress.StatusRegions,
		done:       progress.StatusCompleted,
		identify:   l.identifyRegion,
		counters: func(total, processed int) progress.Update {
			return progress.Update{TotalRegions: total, ProcessedRegions: processed}
		},
	})
}

func (l *Loader) seed(ctx context.Context, run *progress.Run, st stage) (Summary, error) {
	sum := Summary{RunID: run.ID, RegionType: st.regionType}
	log := l.log.With("run_id", run.ID, "region_type", st.regionType)

	l.advance(ctx, run, progress.Update{Status: st.start, Step: fmt.Sprintf("fetching %s boundaries", st.regionType)})

	fc, err := st.source.Fetch(ctx)
	if err != nil {
		l.metrics.SeedRunsTotal.WithLabelValues(string(st.regionType), "error").Inc()
		log.Error("boundary dataset unavailable", "error", err)
		return sum, fmt.Errorf("seed %s: %w", st.regionType, err)
	}

	total := len(fc.Features)
	sum.Features = total
	log.Info("seeding started", "features", total, "years", l.cfg.Years, "policy", l.cfg.Policy)
	u := st.counters(total, 0)
	u.Step = fmt.Sprintf("seeding %d %s features", total, st.regionType)
	l.advance(ctx, run, u)

	for start := 0; start < total; start += l.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			l.metrics.SeedRunsTotal.WithLabelValues(string(st.regionType), "error").Inc()
			return sum, err
		}
		end := min(start+l.cfg.ChunkSize, total)
		chunkStart := l.clock.Now()

		for i := start; i < end; i++ {
			l.seedFeature(ctx, &fc.Features[i], st, &sum, log)
		}

		u := st.counters(total, end)
		u.Step = fmt.Sprintf("%s %d/%d", st.regionType, end, total)
		u.Details = sum.details()
		l.advance(ctx, run, u)
		l.metrics.SeedBatchDuration.Observe(l.clock.Since(chunkStart).Seconds())
	}

	done := st.counters(total, total)
	done.Status = st.done
	done.Step = fmt.Sprintf("%s seeding finished", st.regionType)
	done.Details = sum.details()
	l.advance(ctx, run, done)

	l.metrics.SeedRunsTotal.WithLabelValues(string(st.regionType), "success").Inc()
	log.Info("seeding finished",
		"features", sum.Features,
		"written", sum.Written,
		"skipped", sum.Skipped,
		"skipped_unmapped", sum.SkippedUnmapped,
		"failed_geometry", sum.FailedGeometry,
		"validation_failed", sum.ValidationFailed,
		"write_failed", sum.WriteFailed,
	)
	return sum, nil
}

// seedFeature writes one record per target year. Every failure is counted
// and logged; none stops the batch.
func (l *Loader) seedFeature(ctx context.Context, f *geo.Feature, st stage, sum *Summary, log *slog.Logger) {
	typ := string(st.regionType)

	id, ok := st.identify(f.Properties)
	if !ok {
		sum.SkippedUnmapped++
		l.metrics.SeedFeatures.WithLabelValues(typ, "unmapped").Inc()
		log.Info("feature skipped: no usable code", "name", geo.StringProp(f.Properties, "NAME", "name", "ADMIN", "admin"))
		return
	}

	mp, err := geo.NormalizeMultiPolygon(f.Geometry)
	if err == nil && len(mp) == 0 {
		err = fmt.Errorf("%w: empty geometry", geo.ErrUnsupportedGeometry)
	}
	if err != nil {
		sum.FailedGeometry++
		l.metrics.SeedFeatures.WithLabelValues(typ, "bad_geometry").Inc()
		log.Warn("feature skipped: bad geometry", "region_code", id.code, "error", err)
		return
	}
	centroid := geo.Centroid(mp)
	profile := l.profiles.For(id.code)

	for _, year := range l.cfg.Years {
		rec := &regions.Record{
			RegionCode:  id.code,
			RegionType:  st.regionType,
			Country:     id.country,
			RegionName:  id.name,
			DataYear:    year,
			Geometry:    regions.Boundary(mp),
			Centroid:    regions.Point(centroid),
			Metrics:     Synthesize(id.code, st.regionType, year, profile),
			DataSources: pq.StringArray{regions.TagSynthetic},
			LastUpdated: l.clock.Now().UTC(),
		}
		rec.Scores = cii.Compute(rec.Metrics)

		if err := rec.Validate(); err != nil {
			sum.ValidationFailed++
			l.metrics.SeedFeatures.WithLabelValues(typ, "invalid").Inc()
			log.Warn("record rejected", "region_code", id.code, "year", year, "error", err)
			continue
		}

		outcome, err := l.store.UpsertSeed(ctx, rec, l.cfg.Policy)
		if err != nil {
			sum.WriteFailed++
			l.metrics.SeedFeatures.WithLabelValues(typ, "write_error").Inc()
			log.Error("record write failed", "region_code", id.code, "year", year, "error", err)
			continue
		}
		switch outcome {
		case regions.OutcomeSkipped:
			sum.Skipped++
			l.metrics.SeedFeatures.WithLabelValues(typ, "skipped").Inc()
		default:
			sum.Written++
			l.metrics.SeedFeatures.WithLabelValues(typ, "written").Inc()
		}
	}
}

func (l *Loader) identifyCountry(props map[string]any) (identity, bool) {
	for _, key := range countryCodeKeys {
		iso3 := geo.StringProp(props, key)
		if iso3 == "" {
			continue
		}
		if code, ok := l.codes.Lookup(iso3); ok {
			name := geo.DisplayName(geo.StringProp(props, countryNameKeys...))
			if name == "" {
				name = code
			}
			return identity{code: code, name: name, country: name}, true
		}
	}
	return identity{}, false
}

func (l *Loader) identifyRegion(props map[string]any) (identity, bool) {
	code := strings.ToUpper(geo.StringProp(props, regionCodeKeys...))
	if !subdivisionPattern.MatchString(code) {
		return identity{}, false
	}
	name := geo.DisplayName(geo.StringProp(props, regionNameKeys...))
	if name == "" {
		name = code
	}
	country := geo.DisplayName(geo.StringProp(props, regionCountryKeys...))
	if country == "" {
		country = l.parentName(props, code)
	}
	return identity{code: code, name: name, country: country}, true
}

// parentName falls back to the parent's code when the dataset carries no
// country name.
func (l *Loader) parentName(props map[string]any, code string) string {
	if iso3 := geo.StringProp(props, regionParentKey); iso3 != "" {
		if parent, ok := l.codes.Lookup(iso3); ok {
			return parent
		}
	}
	return regions.ParentCode(code)
}

// advance records progress. A failed progress write never fails the seeding
// run.
func (l *Loader) advance(ctx context.Context, run *progress.Run, u progress.Update) {
	if _, err := run.Advance(ctx, u); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		l.log.Warn("progress update failed", "run_id", run.ID, "step", u.Step, "error", err)
	}
}
