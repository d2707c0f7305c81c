package pipeline

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/seed/countries", h.SeedCountries)
	r.Post("/seed/regions", h.SeedRegions)
	r.Post("/enrich", h.Enrich)
	r.Post("/recompute", h.Recompute)
	r.Get("/progress", h.LatestProgress)
	r.Get("/progress/{id}", h.GetProgress)

	return r
}
