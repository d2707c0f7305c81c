package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler recomputes the configured years on a fixed interval.
type Scheduler struct {
	recomputer Recomputer
	years      []int
	interval   time.Duration
	clock      clockwork.Clock
	log        *slog.Logger
}

func NewScheduler(recomputer Recomputer, years []int, interval time.Duration, clock clockwork.Clock, log *slog.Logger) *Scheduler {
	return &Scheduler{
		recomputer: recomputer,
		years:      years,
		interval:   interval,
		clock:      clock,
		log:        log.With("component", "scheduler"),
	}
}

// Run blocks until ctx is done. A zero interval disables scheduling and Run
// returns immediately. Errors are logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("scheduled recompute disabled")
		return
	}
	s.log.Info("scheduled recompute enabled", "interval", s.interval, "years", s.years)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, year := range s.years {
		if ctx.Err() != nil {
			return
		}
		sum, err := s.recomputer.Recompute(ctx, year, "")
		if err != nil {
			s.log.Error("scheduled recompute failed", "year", year, "error", err)
			continue
		}
		s.log.Info("scheduled recompute finished", "year", year, "computed", sum.Computed, "skipped", sum.Skipped, "failed", sum.Failed)
	}
}
