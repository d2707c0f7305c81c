package cii

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/jonboulle/clockwork"
)

// Store is the slice of the region store the recompute job needs.
type Store interface {
	ListForRecompute(ctx context.Context, year int, t regions.RegionType, afterID uint64, limit int) ([]regions.Record, error)
	CountForRecompute(ctx context.Context, year int, t regions.RegionType) (int64, error)
	UpdateScores(ctx context.Context, id uint64, s regions.Scores) error
}

// Summary is the result of one recompute invocation.
type Summary struct {
	Year       int                `json:"year"`
	RegionType regions.RegionType `json:"region_type,omitempty"`
	Computed   int                `json:"computed"`
	Skipped    int                `json:"skipped"`
	Failed     int                `json:"failed"`
	Total      int                `json:"total"`
}

// EngineConfig tunes chunking. A zero pause disables the wait between chunks.
type EngineConfig struct {
	ChunkSize int
	Pause     time.Duration
}

// Engine recomputes stored scores.
type Engine struct {
	store   Store
	cfg     EngineConfig
	clock   clockwork.Clock
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewEngine(store Store, cfg EngineConfig, clock clockwork.Clock, log *slog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	return &Engine{
		store:   store,
		cfg:     cfg,
		clock:   clock,
		log:     log.With("component", "cii"),
		metrics: metrics,
	}
}

// Recompute overwrites the components and composite of every region of the
// year (and type, when not empty) whose sources are not purely synthetic.
// Regions below the evidence gate are written with null scores and counted
// as skipped. Only a failed listing query aborts the run.
func (e *Engine) Recompute(ctx context.Context, year int, t regions.RegionType) (Summary, error) {
	start := e.clock.Now()
	sum := Summary{Year: year, RegionType: t}

	total, err := e.store.CountForRecompute(ctx, year, t)
	if err != nil {
		return sum, fmt.Errorf("recompute %d: %w", year, err)
	}
	sum.Total = int(total)
	e.log.Info("recompute starting", "year", year, "region_type", t, "total", total)

	var afterID uint64
	for chunk := 0; ; chunk++ {
		if chunk > 0 && e.cfg.Pause > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-e.clock.After(e.cfg.Pause):
			}
		}

		recs, err := e.store.ListForRecompute(ctx, year, t, afterID, e.cfg.ChunkSize)
		if err != nil {
			return sum, fmt.Errorf("recompute %d: %w", year, err)
		}
		if len(recs) == 0 {
			break
		}

		for i := range recs {
			rec := &recs[i]
			afterID = rec.ID
			scores := Compute(rec.Metrics)

			if err := e.store.UpdateScores(ctx, rec.ID, scores); err != nil {
				sum.Failed++
				e.metrics.CIIRegions.WithLabelValues("failed").Inc()
				e.log.Warn("score update failed", "region_code", rec.RegionCode, "year", year, "error", err)
				continue
			}
			if scores.CIIScore == nil {
				sum.Skipped++
				e.metrics.CIIRegions.WithLabelValues("skipped").Inc()
				continue
			}
			sum.Computed++
			e.metrics.CIIRegions.WithLabelValues("computed").Inc()
		}

		if len(recs) < e.cfg.ChunkSize {
			break
		}
	}

	e.metrics.RecomputeDuration.Observe(e.clock.Since(start).Seconds())
	e.log.Info("recompute finished",
		"year", year,
		"computed", sum.Computed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"total", sum.Total,
	)
	return sum, nil
}
