package regions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/EmpoweredVote/cii-backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

// Handler serves the read-only region API.
type Handler struct {
	store Store
	log   *slog.Logger
}

func NewHandler(store Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log.With("component", "regions")}
}

// ListRegions handles GET /regions?year=&type=
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	year, err := utils.IntParam(r, "year", 0)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	limit, err := utils.IntParam(r, "limit", 0)
	if err != nil || limit < 0 {
		utils.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	f := Filter{Year: year, Limit: limit}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := ParseType(raw)
		if !ok {
			utils.WriteError(w, http.StatusBadRequest, "type must be country or region")
			return
		}
		f.Type = t
	}

	recs, err := h.store.List(r.Context(), f)
	if err != nil {
		utils.LoggerFrom(r.Context(), h.log).Error("list regions failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to list regions")
		return
	}
	if recs == nil {
		recs = []Record{}
	}
	utils.WriteJSON(w, http.StatusOK, recs)
}

// GetRegion handles GET /regions/{code}?year=
func (h *Handler) GetRegion(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	year, err := utils.IntParam(r, "year", 0)
	if err != nil || year == 0 {
		utils.WriteError(w, http.StatusBadRequest, "year is required")
		return
	}

	rec, err := h.store.Get(r.Context(), code, year)
	if errors.Is(err, ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "region not found")
		return
	}
	if err != nil {
		utils.LoggerFrom(r.Context(), h.log).Error("get region failed", "code", code, "year", year, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load region")
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

// LocateRegion handles GET /regions/locate?lon=&lat=&year=
func (h *Handler) LocateRegion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	if errLon != nil || errLat != nil || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		utils.WriteError(w, http.StatusBadRequest, "lon and lat are required WGS84 coordinates")
		return
	}
	year, err := utils.IntParam(r, "year", 0)
	if err != nil || year == 0 {
		utils.WriteError(w, http.StatusBadRequest, "year is required")
		return
	}

	recs, err := h.store.Locate(r.Context(), lon, lat, year)
	if err != nil {
		utils.LoggerFrom(r.Context(), h.log).Error("locate region failed", "lon", lon, "lat", lat, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to locate region")
		return
	}
	if recs == nil {
		recs = []Record{}
	}
	utils.WriteJSON(w, http.StatusOK, recs)
}
