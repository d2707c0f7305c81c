package regions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListRegions)
	r.Get("/locate", h.LocateRegion)
	r.Get("/{code}", h.GetRegion)

	return r
}
