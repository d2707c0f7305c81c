package regions

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"github.com/jonboulle/clockwork"
)

type recordKey struct {
	code string
	year int
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	nextID uint64
	byKey  map[recordKey]*Record
	byID   map[uint64]*Record
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock: clock,
		byKey: map[recordKey]*Record{},
		byID:  map[uint64]*Record{},
	}
}

func clone(r *Record) Record {
	out := *r
	out.Metrics = Metrics{}
	out.Metrics.Merge(r.Metrics)
	out.Scores = copyScores(r.Scores)
	out.DataSources = slices.Clone(r.DataSources)
	out.Geometry = slices.Clone(r.Geometry)
	if r.LeaseExpiresAt != nil {
		t := *r.LeaseExpiresAt
		out.LeaseExpiresAt = &t
	}
	return out
}

func copyScores(s Scores) Scores {
	cp := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		x := *v
		return &x
	}
	return Scores{
		CIIScore:                   cp(s.CIIScore),
		ClimateRiskComponent:       cp(s.ClimateRiskComponent),
		InfrastructureGapComponent: cp(s.InfrastructureGapComponent),
		SocioeconomicVulnComponent: cp(s.SocioeconomicVulnComponent),
		AirQualityComponent:        cp(s.AirQualityComponent),
	}
}

func (s *MemoryStore) UpsertSeed(_ context.Context, rec *Record, policy config.ReseedPolicy) (UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{rec.RegionCode, rec.DataYear}
	existing, ok := s.byKey[key]
	if !ok {
		s.nextID++
		row := clone(rec)
		row.ID = s.nextID
		row.LeaseExpiresAt = nil
		s.byKey[key] = &row
		s.byID[row.ID] = &row
		rec.ID = row.ID
		return OutcomeWritten, nil
	}

	switch policy {
	case config.ReseedSkip:
		return OutcomeSkipped, nil
	case config.ReseedOverwrite:
		lease := existing.LeaseExpiresAt
		row := clone(rec)
		row.ID = existing.ID
		row.LeaseExpiresAt = lease
		*existing = row
	default:
		purely := existing.IsPurelySynthetic()
		incoming := clone(rec)
		existing.RegionType = incoming.RegionType
		existing.Country = incoming.Country
		existing.RegionName = incoming.RegionName
		existing.Geometry = incoming.Geometry
		existing.Centroid = incoming.Centroid
		existing.LastUpdated = incoming.LastUpdated
		if purely {
			existing.Metrics = incoming.Metrics
			existing.Scores = incoming.Scores
			existing.DataSources = incoming.DataSources
		}
	}
	rec.ID = existing.ID
	return OutcomeWritten, nil
}

func (s *MemoryStore) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *MemoryStore) LeaseSynthetic(_ context.Context, t RegionType, year, limit int, ttl time.Duration) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []Record
	for _, id := range s.sortedIDs() {
		if len(out) >= limit {
			break
		}
		r := s.byID[id]
		if r.RegionType != t || r.DataYear != year || !r.IsSynthetic() {
			continue
		}
		if r.LeaseExpiresAt != nil && !r.LeaseExpiresAt.Before(now) {
			continue
		}
		exp := now.Add(ttl)
		r.LeaseExpiresAt = &exp
		row := clone(r)
		row.Geometry = nil
		out = append(out, row)
	}
	return out, nil
}

func (s *MemoryStore) CountSynthetic(_ context.Context, t RegionType, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.byID {
		if r.RegionType == t && r.DataYear == year && r.IsSynthetic() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ApplyEnrichment(_ context.Context, id uint64, patch Metrics, sources []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("apply enrichment %d: %w", id, ErrNotFound)
	}
	r.Metrics.Merge(patch)
	r.DataSources = slices.Clone(sources)
	r.LeaseExpiresAt = nil
	r.LastUpdated = s.clock.Now()
	return nil
}

func (s *MemoryStore) PatchByCode(_ context.Context, code string, patch Metrics) (int64, error) {
	if patch.IsEmpty() {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.byID {
		if r.RegionCode != code {
			continue
		}
		r.Metrics.Merge(patch)
		r.LastUpdated = s.clock.Now()
		n++
	}
	return n, nil
}

func inRecomputeScope(r *Record, year int, t RegionType) bool {
	return r.DataYear == year && !r.IsPurelySynthetic() && (t == "" || r.RegionType == t)
}

func (s *MemoryStore) ListForRecompute(_ context.Context, year int, t RegionType, afterID uint64, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, id := range s.sortedIDs() {
		if len(out) >= limit {
			break
		}
		r := s.byID[id]
		if id <= afterID || !inRecomputeScope(r, year, t) {
			continue
		}
		row := clone(r)
		row.Geometry = nil
		out = append(out, row)
	}
	return out, nil
}

func (s *MemoryStore) CountForRecompute(_ context.Context, year int, t RegionType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, r := range s.byID {
		if inRecomputeScope(r, year, t) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateScores(_ context.Context, id uint64, sc Scores) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("update scores %d: %w", id, ErrNotFound)
	}
	r.Scores = copyScores(sc)
	r.LastUpdated = s.clock.Now()
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.byID {
		if f.Year != 0 && r.DataYear != f.Year {
			continue
		}
		if f.Type != "" && r.RegionType != f.Type {
			continue
		}
		row := clone(r)
		row.Geometry = nil
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegionCode != out[j].RegionCode {
			return out[i].RegionCode < out[j].RegionCode
		}
		return out[i].DataYear < out[j].DataYear
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, code string, year int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byKey[recordKey{code, year}]
	if !ok {
		return nil, ErrNotFound
	}
	row := clone(r)
	return &row, nil
}

func (s *MemoryStore) Locate(_ context.Context, lon, lat float64, year int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.byID {
		if r.DataYear != year || !geo.MultiPolygon(r.Geometry).Contains(geo.Position{lon, lat}) {
			continue
		}
		row := clone(r)
		row.Geometry = nil
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegionType != out[j].RegionType {
			return out[i].RegionType < out[j].RegionType
		}
		return out[i].RegionCode < out[j].RegionCode
	})
	return out, nil
}
