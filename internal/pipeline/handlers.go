// Package pipeline exposes the batch jobs over HTTP and schedules periodic
// CII recomputation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/EmpoweredVote/cii-backend/internal/cii"
	"github.com/EmpoweredVote/cii-backend/internal/enrichment"
	"github.com/EmpoweredVote/cii-backend/internal/progress"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/EmpoweredVote/cii-backend/internal/seeding"
	"github.com/EmpoweredVote/cii-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Seeder interface {
	SeedCountries(ctx context.Context, run *progress.Run) (seeding.Summary, error)
	SeedRegions(ctx context.Context, run *progress.Run) (seeding.Summary, error)
}

type Enricher interface {
	EnrichBatch(ctx context.Context, t regions.RegionType, year int) (enrichment.BatchResult, error)
}

type Recomputer interface {
	Recompute(ctx context.Context, year int, t regions.RegionType) (cii.Summary, error)
}

type Handler struct {
	seeder     Seeder
	enricher   Enricher
	recomputer Recomputer
	progress   *progress.Coordinator
	log        *slog.Logger
}

func NewHandler(seeder Seeder, enricher Enricher, recomputer Recomputer, coord *progress.Coordinator, log *slog.Logger) *Handler {
	return &Handler{
		seeder:     seeder,
		enricher:   enricher,
		recomputer: recomputer,
		progress:   coord,
		log:        log.With("component", "pipeline"),
	}
}

// failure is the body of a batch endpoint whose setup failed. Result holds
// whatever counts were gathered before the failure.
type failure struct {
	Error  string `json:"error"`
	Result any    `json:"result,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error, partial any) {
	utils.LoggerFrom(r.Context(), h.log).Error(msg, "error", err)
	utils.WriteJSON(w, status, failure{Error: msg + ": " + err.Error(), Result: partial})
}

// SeedCountries handles POST /pipeline/seed/countries. It starts a new run.
func (h *Handler) SeedCountries(w http.ResponseWriter, r *http.Request) {
	run, err := h.progress.Start(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to start seeding run", err, nil)
		return
	}
	sum, err := h.seeder.SeedCountries(r.Context(), run)
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, "country seeding failed", err, sum)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sum)
}

// SeedRegions handles POST /pipeline/seed/regions?run_id=. Without run_id
// it continues the most recent run.
func (h *Handler) SeedRegions(w http.ResponseWriter, r *http.Request) {
	var (
		run *progress.Run
		err error
	)
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			utils.WriteError(w, http.StatusBadRequest, "run_id must be a UUID")
			return
		}
		run, err = h.progress.Resume(r.Context(), id)
	} else {
		run, err = h.progress.ResumeLatest(r.Context())
	}
	if errors.Is(err, progress.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "seeding run not found")
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to load seeding run", err, nil)
		return
	}

	sum, err := h.seeder.SeedRegions(r.Context(), run)
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, "region seeding failed", err, sum)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sum)
}

// Enrich handles POST /pipeline/enrich?type=&year=. One call runs one batch;
// callers repeat while should_continue is true.
func (h *Handler) Enrich(w http.ResponseWriter, r *http.Request) {
	year, ok := requireYear(w, r)
	if !ok {
		return
	}
	t := regions.TypeCountry
	if raw := r.URL.Query().Get("type"); raw != "" {
		if t, ok = regions.ParseType(raw); !ok {
			utils.WriteError(w, http.StatusBadRequest, "type must be country or region")
			return
		}
	}

	res, err := h.enricher.EnrichBatch(r.Context(), t, year)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "enrichment batch failed", err, res)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// Recompute handles POST /pipeline/recompute?year=&type=.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	year, ok := requireYear(w, r)
	if !ok {
		return
	}
	var t regions.RegionType
	if raw := r.URL.Query().Get("type"); raw != "" {
		if t, ok = regions.ParseType(raw); !ok {
			utils.WriteError(w, http.StatusBadRequest, "type must be country or region")
			return
		}
	}

	sum, err := h.recomputer.Recompute(r.Context(), year, t)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "recompute failed", err, sum)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sum)
}

// LatestProgress handles GET /pipeline/progress.
func (h *Handler) LatestProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := h.progress.Latest(r.Context())
	h.writeProgress(w, r, rec, err)
}

// GetProgress handles GET /pipeline/progress/{id}.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}
	rec, err := h.progress.Get(r.Context(), id)
	h.writeProgress(w, r, rec, err)
}

func (h *Handler) writeProgress(w http.ResponseWriter, r *http.Request, rec progress.Record, err error) {
	if errors.Is(err, progress.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "no seeding run found")
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "failed to load progress", err, nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

func requireYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := utils.IntParam(r, "year", 0)
	if err != nil || year < regions.MinYear || year > regions.MaxYear {
		utils.WriteError(w, http.StatusBadRequest, "year is required and must be between 2000 and 2100")
		return 0, false
	}
	return year, true
}
