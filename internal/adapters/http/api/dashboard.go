package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/birdboard/internal/domain/model"
)

// maxRefreshBody bounds the optional JSON body of POST /api/refresh.
const maxRefreshBody = 4 << 10

// DashboardDependencies computes, refreshes and reads back whole dashboards.
type DashboardDependencies interface {
	Dashboard(ctx context.Context, params model.DashboardParams) (model.Dashboard, error)
	RequestRefresh(ctx context.Context, params model.DashboardParams) (model.RefreshRequest, error)
	Latest(ctx context.Context, region string) (model.Dashboard, error)
}

// DashboardHandler handles dashboard requests.
type DashboardHandler struct {
	deps DashboardDependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleDashboard handles GET /api/dashboard?region=&recent_days=&days=.
// Failed views are reported inside the body; the response is 200 as long
// as the parameters were valid.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dashboard"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	params, err := dashboardParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	d, err := h.deps.Dashboard(r.Context(), params)
	if err != nil && d.GeneratedAt.IsZero() {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleLatest handles GET /api/dashboard/latest?region= requests.
func (h *DashboardHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_latest_dashboard"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	d, err := h.deps.Latest(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type refreshResponse struct {
	Status      string                `json:"status"`
	RequestID   string                `json:"request_id"`
	Generation  uint64                `json:"generation"`
	Params      model.DashboardParams `json:"params"`
	RequestedAt time.Time             `json:"requested_at"`
}

// HandleRefresh handles POST /api/refresh. Parameters come from an optional
// JSON body, falling back to the query string.
func (h *DashboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	params, err := refreshParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := h.deps.RequestRefresh(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{
		Status:      "accepted",
		RequestID:   req.ID,
		Generation:  req.Generation,
		Params:      req.Params,
		RequestedAt: req.RequestedAt,
	})
}

func refreshParams(r *http.Request) (model.DashboardParams, error) {
	params, err := dashboardParams(r)
	if err != nil {
		return params, err
	}
	var body model.DashboardParams
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBody))
	switch err := dec.Decode(&body); {
	case errors.Is(err, io.EOF):
		return params, nil
	case err != nil:
		return params, err
	}
	if body.Region != "" {
		params.Region = body.Region
	}
	if body.RecentDays != 0 {
		params.RecentDays = body.RecentDays
	}
	if body.Days != 0 {
		params.Days = body.Days
	}
	return params, nil
}
