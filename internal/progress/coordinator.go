package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Coordinator creates runs and hands out run handles.
type Coordinator struct {
	store Store
	clock clockwork.Clock
	log   *slog.Logger
}

func NewCoordinator(store Store, clock clockwork.Clock, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, clock: clock, log: log.With("component", "progress")}
}

// Run is a writer's handle on one progress record.
type Run struct {
	ID uuid.UUID
	c  *Coordinator
}

// Start inserts a new run in the initializing state.
func (c *Coordinator) Start(ctx context.Context) (*Run, error) {
	now := c.clock.Now()
	rec := &Record{
		ID:          uuid.New(),
		Status:      StatusInitializing,
		CurrentStep: "starting",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	c.log.Info("seeding run started", "run_id", rec.ID)
	return &Run{ID: rec.ID, c: c}, nil
}

// Resume returns a handle on an existing run.
func (c *Coordinator) Resume(ctx context.Context, id uuid.UUID) (*Run, error) {
	if _, err := c.store.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("resume run %s: %w", id, err)
	}
	return &Run{ID: id, c: c}, nil
}

// ResumeLatest returns a handle on the most recent run, starting one if
// none exists.
func (c *Coordinator) ResumeLatest(ctx context.Context) (*Run, error) {
	rec, err := c.store.Latest(ctx)
	if errors.Is(err, ErrNotFound) {
		return c.Start(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &Run{ID: rec.ID, c: c}, nil
}

// Latest returns the most recently created run.
func (c *Coordinator) Latest(ctx context.Context) (Record, error) {
	return c.store.Latest(ctx)
}

// Get returns one run by id.
func (c *Coordinator) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return c.store.Get(ctx, id)
}

// Advance applies u to the run. Moving to the current or an earlier status
// is a no-op for the status; counters only grow.
func (r *Run) Advance(ctx context.Context, u Update) (Record, error) {
	rec, err := r.c.store.Advance(ctx, r.ID, u, r.c.clock.Now())
	if err != nil {
		return Record{}, err
	}
	if u.Status != "" && rec.Status != u.Status {
		r.c.log.Debug("stale status transition ignored", "run_id", r.ID, "requested", u.Status, "current", rec.Status)
	}
	return rec, nil
}
