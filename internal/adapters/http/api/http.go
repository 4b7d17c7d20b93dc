// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/birdboard/internal/app"
	"github.com/okian/birdboard/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ViewDependencies
	DashboardDependencies
}

// Server wires HTTP routes for the birdboard API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	viewsHandler     *ViewsHandler
	dashboardHandler *DashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		viewsHandler:     NewViewsHandler(deps),
		dashboardHandler: NewDashboardHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/service/stats", MetricsMiddleware(s.statsHandler.HandleStats, "service_stats"))

	mux.HandleFunc("/api/recent", MetricsMiddleware(s.viewsHandler.HandleRecent, model.ViewRecent))
	mux.HandleFunc("/api/species", MetricsMiddleware(s.viewsHandler.HandleSpecies, model.ViewSpecies))
	mux.HandleFunc("/api/hotspots", MetricsMiddleware(s.viewsHandler.HandleHotspots, model.ViewHotspots))
	mux.HandleFunc("/api/stats", MetricsMiddleware(s.viewsHandler.HandleStats, model.ViewStats))
	mux.HandleFunc("/api/search", MetricsMiddleware(s.viewsHandler.HandleSearch, model.ViewSearch))
	mux.HandleFunc("/api/gallery", MetricsMiddleware(s.viewsHandler.HandleGallery, model.ViewGallery))

	mux.HandleFunc("/api/dashboard", MetricsMiddleware(s.dashboardHandler.HandleDashboard, "dashboard"))
	mux.HandleFunc("/api/dashboard/latest", MetricsMiddleware(s.dashboardHandler.HandleLatest, "dashboard_latest"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.dashboardHandler.HandleRefresh, "refresh"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError renders an error coming out of the service layer,
// choosing the status from its classification.
func writeServiceError(w http.ResponseWriter, err error) {
	code := service.ErrorCode(err)
	writeJSON(w, statusFor(code), errorResponse{Code: code, Message: service.Message(err)})
}

func statusFor(code string) int {
	switch code {
	case service.CodeBadRequest:
		return http.StatusBadRequest
	case service.CodeConfiguration:
		return http.StatusServiceUnavailable
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeUpstreamUnauthorized, service.CodeUpstream, service.CodeUpstreamFormat:
		return http.StatusBadGateway
	case service.CodeBackpressure:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}

// queryInt reads an optional integer query parameter. A missing value
// yields 0, which the service replaces with its default.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// dashboardParams reads region, recent_days and days from the query.
func dashboardParams(r *http.Request) (model.DashboardParams, error) {
	recentDays, err := queryInt(r, "recent_days")
	if err != nil {
		return model.DashboardParams{}, err
	}
	days, err := queryInt(r, "days")
	if err != nil {
		return model.DashboardParams{}, err
	}
	return model.DashboardParams{
		Region:     r.URL.Query().Get("region"),
		RecentDays: recentDays,
		Days:       days,
	}, nil
}
