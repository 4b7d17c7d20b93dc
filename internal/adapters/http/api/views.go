package api

import (
	"context"
	"net/http"

	"github.com/okian/birdboard/internal/domain/model"
)

// ViewDependencies computes the individual dashboard views.
type ViewDependencies interface {
	Recent(ctx context.Context, region string, days int) (model.List[model.Observation], error)
	Species(ctx context.Context, region string, days int) (model.List[model.SpeciesAggregate], error)
	Hotspots(ctx context.Context, region string) (model.List[model.Hotspot], error)
	Stats(ctx context.Context, region string, days int) (model.StatsSummary, error)
	Search(ctx context.Context, region string, days int, query string) (model.List[model.Observation], error)
	Gallery(ctx context.Context, region string, days int) (model.List[model.PhotoObservation], error)
}

// ViewsHandler serves one view per route.
type ViewsHandler struct {
	deps ViewDependencies
}

// NewViewsHandler creates a new views handler.
func NewViewsHandler(deps ViewDependencies) *ViewsHandler {
	return &ViewsHandler{deps: deps}
}

// HandleRecent handles GET /api/recent?region=&days= requests.
func (h *ViewsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	serveWindowed(w, r, "api.get_recent", h.deps.Recent)
}

// HandleSpecies handles GET /api/species?region=&days= requests.
func (h *ViewsHandler) HandleSpecies(w http.ResponseWriter, r *http.Request) {
	serveWindowed(w, r, "api.get_species", h.deps.Species)
}

// HandleStats handles GET /api/stats?region=&days= requests.
func (h *ViewsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	serveWindowed(w, r, "api.get_stats", h.deps.Stats)
}

// HandleGallery handles GET /api/gallery?region=&days= requests.
func (h *ViewsHandler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	serveWindowed(w, r, "api.get_gallery", h.deps.Gallery)
}

// HandleHotspots handles GET /api/hotspots?region= requests.
func (h *ViewsHandler) HandleHotspots(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_hotspots"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	v, err := h.deps.Hotspots(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleSearch handles GET /api/search?q=&region=&days= requests.
func (h *ViewsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_search"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	q := r.URL.Query()
	v, err := h.deps.Search(r.Context(), q.Get("region"), days, q.Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func serveWindowed[T any](w http.ResponseWriter, r *http.Request, op string, compute func(context.Context, string, int) (T, error)) {
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := compute(r.Context(), r.URL.Query().Get("region"), days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
