package regions

import (
	"context"
	"errors"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/config"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("region record not found")

// UpsertOutcome tells the caller what a seed upsert did to the stored row.
type UpsertOutcome string

const (
	OutcomeWritten UpsertOutcome = "written"
	OutcomeSkipped UpsertOutcome = "skipped"
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Year  int
	Type  RegionType
	Limit int
}

// Store is the region record persistence used by every job.
type Store interface {
	// UpsertSeed writes a seeded record keyed by (region_code, data_year),
	// resolving conflicts according to policy.
	UpsertSeed(ctx context.Context, rec *Record, policy config.ReseedPolicy) (UpsertOutcome, error)

	// LeaseSynthetic claims up to limit Synthetic-tagged records of the type
	// and year that are not already leased, marking them leased for ttl.
	LeaseSynthetic(ctx context.Context, t RegionType, year, limit int, ttl time.Duration) ([]Record, error)

	// CountSynthetic counts Synthetic-tagged records of the type and year,
	// leased or not.
	CountSynthetic(ctx context.Context, t RegionType, year int) (int64, error)

	// ApplyEnrichment merges the non-nil metrics into the record, replaces
	// its source tags and clears the lease.
	ApplyEnrichment(ctx context.Context, id uint64, patch Metrics, sources []string) error

	// PatchByCode merges the non-nil metrics into every year of a region
	// code. It returns the number of rows touched.
	PatchByCode(ctx context.Context, code string, patch Metrics) (int64, error)

	// ListForRecompute pages through records of the year (and optional type)
	// whose source set is not exactly {Synthetic}, ordered by id after afterID.
	ListForRecompute(ctx context.Context, year int, t RegionType, afterID uint64, limit int) ([]Record, error)

	// CountForRecompute counts what ListForRecompute would visit.
	CountForRecompute(ctx context.Context, year int, t RegionType) (int64, error)

	// UpdateScores overwrites the derived score columns.
	UpdateScores(ctx context.Context, id uint64, s Scores) error

	// List returns records without geometry.
	List(ctx context.Context, f Filter) ([]Record, error)

	// Get returns one record including geometry.
	Get(ctx context.Context, code string, year int) (*Record, error)

	// Locate returns the records of the year whose boundary contains the
	// point, countries first, without geometry.
	Locate(ctx context.Context, lon, lat float64, year int) ([]Record, error)
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
