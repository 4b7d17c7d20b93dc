package model

import (
	"errors"
	"time"
)

// ErrInvalidInput marks a caller-supplied parameter that cannot be served.
var ErrInvalidInput = errors.New("invalid input")

// View names used in dashboards, logs and metrics.
const (
	ViewRecent   = "recent"
	ViewSpecies  = "species"
	ViewHotspots = "hotspots"
	ViewStats    = "stats"
	ViewGallery  = "gallery"
	ViewSearch   = "search"
)

// DashboardParams selects what a dashboard is computed for.
type DashboardParams struct {
	Region     string `json:"region"`
	RecentDays int    `json:"recent_days"`
	Days       int    `json:"days"`
}

// ViewError is the renderable form of a failed view.
type ViewError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ViewResult holds either a view's data or the error that prevented it.
type ViewResult[T any] struct {
	Data  T          `json:"data"`
	Error *ViewError `json:"error,omitempty"`
	Err   error      `json:"-"`
}

// OK reports whether the view was computed.
func (r ViewResult[T]) OK() bool { return r.Err == nil }

// Dashboard is every view for one region, computed from a single cycle.
type Dashboard struct {
	Generation  uint64                             `json:"generation,omitempty"`
	Params      DashboardParams                    `json:"params"`
	GeneratedAt time.Time                          `json:"generated_at"`
	Recent      ViewResult[List[Observation]]      `json:"recent"`
	Species     ViewResult[List[SpeciesAggregate]] `json:"species"`
	Hotspots    ViewResult[List[Hotspot]]          `json:"hotspots"`
	Stats       ViewResult[StatsSummary]           `json:"stats"`
	Gallery     ViewResult[List[PhotoObservation]] `json:"gallery"`
}

// Failed reports whether any view failed.
func (d *Dashboard) Failed() bool {
	return !d.Recent.OK() || !d.Species.OK() || !d.Hotspots.OK() || !d.Stats.OK() || !d.Gallery.OK()
}

// AllFailed reports whether no view could be computed.
func (d *Dashboard) AllFailed() bool {
	return !d.Recent.OK() && !d.Species.OK() && !d.Hotspots.OK() && !d.Stats.OK() && !d.Gallery.OK()
}

// RefreshRequest asks the refresh workers to recompute a dashboard.
type RefreshRequest struct {
	ID          string
	Params      DashboardParams
	Generation  uint64
	RequestedAt time.Time
}
