package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no progress record exists.
var ErrNotFound = errors.New("progress record not found")

type Store interface {
	Create(ctx context.Context, rec *Record) error
	Advance(ctx context.Context, id uuid.UUID, u Update, now time.Time) (Record, error)
	Latest(ctx context.Context) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
}

// GormStore persists progress in Postgres. Monotonicity is enforced in SQL
// so concurrent writers on different connections cannot regress a run.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(d *gorm.DB) *GormStore { return &GormStore{db: d} }

func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("migrate %s: %w", TableName, err)
	}
	return nil
}

func (s *GormStore) Create(ctx context.Context, rec *Record) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

func statusArray() string {
	quoted := make([]string, len(statusOrder))
	for i, st := range statusOrder {
		quoted[i] = "'" + string(st) + "'"
	}
	return "ARRAY[" + strings.Join(quoted, ",") + "]::text[]"
}

func (s *GormStore) Advance(ctx context.Context, id uuid.UUID, u Update, now time.Time) (Record, error) {
	if err := u.validate(); err != nil {
		return Record{}, err
	}

	updates := map[string]any{
		"total_countries":     gorm.Expr("GREATEST(total_countries, ?)", u.TotalCountries),
		"processed_countries": gorm.Expr("GREATEST(processed_countries, ?)", u.ProcessedCountries),
		"total_regions":       gorm.Expr("GREATEST(total_regions, ?)", u.TotalRegions),
		"processed_regions":   gorm.Expr("GREATEST(processed_regions, ?)", u.ProcessedRegions),
		"updated_at":          now,
	}
	if u.Status != "" {
		arr := statusArray()
		updates["status"] = gorm.Expr(
			"CASE WHEN array_position("+arr+", ?::text) > array_position("+arr+", status) THEN ? ELSE status END",
			string(u.Status), string(u.Status))
	}
	if u.Step != "" {
		updates["current_step"] = u.Step
	}
	if u.Details != nil {
		updates["details"] = datatypes.JSONMap(u.Details)
	}

	rec := Record{ID: id}
	res := s.db.WithContext(ctx).Model(&rec).Clauses(clause.Returning{}).Updates(updates)
	if res.Error != nil {
		return Record{}, fmt.Errorf("advance progress %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *GormStore) Latest(ctx context.Context) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Order("created_at DESC").Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("latest progress: %w", err)
	}
	return rec, nil
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get progress %s: %w", id, err)
	}
	return rec, nil
}

// MemoryStore keeps progress in process for tests and dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	recs []*Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs = append(s.recs, &cp)
	return nil
}

func (s *MemoryStore) find(id uuid.UUID) *Record {
	for _, r := range s.recs {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *MemoryStore) Advance(_ context.Context, id uuid.UUID, u Update, now time.Time) (Record, error) {
	if err := u.validate(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return Record{}, ErrNotFound
	}
	r.apply(u, now)
	return *r, nil
}

func (s *MemoryStore) Latest(_ context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Record
	for _, r := range s.recs {
		if latest == nil || !r.CreatedAt.Before(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return Record{}, ErrNotFound
	}
	return *latest, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return Record{}, ErrNotFound
	}
	return *r, nil
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
