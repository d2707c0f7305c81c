package regions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/db"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// boundaryColumns are refreshed by every reseed that is allowed to write.
var boundaryColumns = []string{"region_type", "country", "region_name", "geometry", "centroid", "last_updated"}

// Read projection without the boundary. PostGIS columns come back as GeoJSON.
var (
	listColumns = strings.Join(slices.Concat(
		[]string{"id", "region_code", "region_type", "country", "region_name", "data_year", "ST_AsGeoJSON(centroid) AS centroid"},
		metricColumns,
		scoreColumns,
		[]string{"data_sources", "lease_expires_at", "last_updated"},
	), ", ")
	detailColumns = listColumns + ", ST_AsGeoJSON(geometry) AS geometry"
)

const purelySynthetic = "data_sources = ARRAY['" + TagSynthetic + "']::text[]"

// GormStore is the Postgres/PostGIS implementation of Store.
type GormStore struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewGormStore(d *gorm.DB, clock clockwork.Clock) *GormStore {
	return &GormStore{db: d, clock: clock}
}

// Migrate enables PostGIS and creates the region table and its indexes.
func Migrate(d *gorm.DB) error {
	if err := db.EnsureExtension(d, "postgis"); err != nil {
		return fmt.Errorf("enable postgis: %w", err)
	}
	if err := d.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate %s: %w", TableName, err)
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_regions_geometry ON ` + TableName + ` USING GIST (geometry)`,
		`CREATE INDEX IF NOT EXISTS idx_regions_data_sources ON ` + TableName + ` USING GIN (data_sources)`,
	} {
		if err := d.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *GormStore) UpsertSeed(ctx context.Context, rec *Record, policy config.ReseedPolicy) (UpsertOutcome, error) {
	conflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "region_code"}, {Name: "data_year"}},
	}
	switch policy {
	case config.ReseedSkip:
		conflict.DoNothing = true
	case config.ReseedOverwrite:
		conflict.DoUpdates = clause.AssignmentColumns(slices.Concat(boundaryColumns, metricColumns, scoreColumns, []string{"data_sources"}))
	default:
		conflict.DoUpdates = preserveAssignments()
	}

	row := *rec
	row.ID = 0
	row.LeaseExpiresAt = nil

	var res *gorm.DB
	err := db.WithRetry(func() error {
		res = s.db.WithContext(ctx).Clauses(conflict).Create(&row)
		return res.Error
	})
	if err != nil {
		return "", fmt.Errorf("upsert %s/%d: %w", rec.RegionCode, rec.DataYear, err)
	}
	if res.RowsAffected == 0 {
		return OutcomeSkipped, nil
	}
	rec.ID = row.ID
	return OutcomeWritten, nil
}

// preserveAssignments refreshes boundary columns and only replaces metric,
// score and source columns while the stored row is still purely synthetic.
func preserveAssignments() clause.Set {
	set := make(clause.Set, 0, len(boundaryColumns)+len(metricColumns)+len(scoreColumns)+1)
	for _, c := range boundaryColumns {
		set = append(set, clause.Assignment{Column: clause.Column{Name: c}, Value: gorm.Expr("excluded." + c)})
	}
	guarded := slices.Concat(metricColumns, scoreColumns, []string{"data_sources"})
	for _, c := range guarded {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: c},
			Value: gorm.Expr(fmt.Sprintf("CASE WHEN %s.%s THEN excluded.%s ELSE %s.%s END",
				TableName, purelySynthetic, c, TableName, c)),
		})
	}
	return set
}

func (s *GormStore) LeaseSynthetic(ctx context.Context, t RegionType, year, limit int, ttl time.Duration) ([]Record, error) {
	now := s.clock.Now()
	query := `UPDATE ` + TableName + ` SET lease_expires_at = ?
		WHERE id IN (
			SELECT id FROM ` + TableName + `
			WHERE region_type = ? AND data_year = ? AND ? = ANY(data_sources)
			  AND (lease_expires_at IS NULL OR lease_expires_at < ?)
			ORDER BY id
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + listColumns

	var recs []Record
	if err := s.db.WithContext(ctx).Raw(query, now.Add(ttl), t, year, TagSynthetic, now, limit).Scan(&recs).Error; err != nil {
		return nil, fmt.Errorf("lease synthetic %s/%d: %w", t, year, err)
	}
	// RETURNING does not keep the subquery's order.
	slices.SortFunc(recs, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return recs, nil
}

func (s *GormStore) CountSynthetic(ctx context.Context, t RegionType, year int) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("region_type = ? AND data_year = ? AND ? = ANY(data_sources)", t, year, TagSynthetic).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count synthetic %s/%d: %w", t, year, err)
	}
	return n, nil
}

func (s *GormStore) ApplyEnrichment(ctx context.Context, id uint64, patch Metrics, sources []string) error {
	updates := patch.Columns()
	updates["data_sources"] = pq.StringArray(sources)
	updates["lease_expires_at"] = nil
	updates["last_updated"] = s.clock.Now()

	res := s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("apply enrichment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("apply enrichment %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) PatchByCode(ctx context.Context, code string, patch Metrics) (int64, error) {
	updates := patch.Columns()
	if len(updates) == 0 {
		return 0, nil
	}
	updates["last_updated"] = s.clock.Now()

	res := s.db.WithContext(ctx).Model(&Record{}).Where("region_code = ?", code).Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("patch %s: %w", code, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) recomputeScope(ctx context.Context, year int, t RegionType) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Record{}).
		Where("data_year = ?", year).
		Where("NOT (" + purelySynthetic + ")")
	if t != "" {
		q = q.Where("region_type = ?", t)
	}
	return q
}

func (s *GormStore) ListForRecompute(ctx context.Context, year int, t RegionType, afterID uint64, limit int) ([]Record, error) {
	var recs []Record
	err := s.recomputeScope(ctx, year, t).
		Select(listColumns).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list for recompute %d: %w", year, err)
	}
	return recs, nil
}

func (s *GormStore) CountForRecompute(ctx context.Context, year int, t RegionType) (int64, error) {
	var n int64
	if err := s.recomputeScope(ctx, year, t).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count for recompute %d: %w", year, err)
	}
	return n, nil
}

func (s *GormStore) UpdateScores(ctx context.Context, id uint64, sc Scores) error {
	updates := sc.Columns()
	updates["last_updated"] = s.clock.Now()

	res := s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update scores %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update scores %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, f Filter) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&Record{}).Select(listColumns)
	if f.Year != 0 {
		q = q.Where("data_year = ?", f.Year)
	}
	if f.Type != "" {
		q = q.Where("region_type = ?", f.Type)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var recs []Record
	if err := q.Order("region_code, data_year").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return recs, nil
}

func (s *GormStore) Get(ctx context.Context, code string, year int) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Model(&Record{}).Select(detailColumns).
		Where("region_code = ? AND data_year = ?", code, year).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", code, year, err)
	}
	return &rec, nil
}

func (s *GormStore) Locate(ctx context.Context, lon, lat float64, year int) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).Model(&Record{}).Select(listColumns).
		Where("data_year = ?", year).
		Where("ST_Contains(geometry, ST_SetSRID(ST_MakePoint(?, ?), 4326))", lon, lat).
		Order("region_type, region_code").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("locate %f,%f: %w", lon, lat, err)
	}
	return recs, nil
}
