package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/birdboard/internal/domain/aggregate"
	"github.com/okian/birdboard/internal/domain/gallery"
	"github.com/okian/birdboard/internal/domain/hotspot"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/internal/domain/search"
	"github.com/okian/birdboard/pkg/logger"
	"github.com/okian/birdboard/pkg/metrics"
)

// maxDays mirrors the upstream lookback limit.
const maxDays = 30

// Recent returns the latest observation of each species. days <= 0 uses
// the recent default.
func (s *Service) Recent(ctx context.Context, region string, days int) (model.List[model.Observation], error) {
	obs, err := s.observations(ctx, region, s.days(days, s.recentDays))
	if err != nil {
		return model.List[model.Observation]{}, s.viewFailed(ctx, model.ViewRecent, err)
	}
	out := aggregate.MostRecentPerSpecies(obs)
	s.viewComputed(model.ViewRecent, out.Status, out.Len())
	return out, nil
}

// Species returns the species frequency table.
func (s *Service) Species(ctx context.Context, region string, days int) (model.List[model.SpeciesAggregate], error) {
	obs, err := s.observations(ctx, region, s.days(days, s.summaryDays))
	if err != nil {
		return model.List[model.SpeciesAggregate]{}, s.viewFailed(ctx, model.ViewSpecies, err)
	}
	out := aggregate.SpeciesFrequency(obs)
	s.viewComputed(model.ViewSpecies, out.Status, out.Len())
	return out, nil
}

// Hotspots returns the ranked hotspots with usable coordinates.
func (s *Service) Hotspots(ctx context.Context, region string) (model.List[model.Hotspot], error) {
	hs, err := s.hotspots(ctx, region)
	if err != nil {
		return model.List[model.Hotspot]{}, s.viewFailed(ctx, model.ViewHotspots, err)
	}
	out := hotspot.Rank(hs)
	s.viewComputed(model.ViewHotspots, out.Status, out.Len())
	return out, nil
}

// Stats returns the headline totals. Observations are fetched before
// hotspots; a failure of either fails the view.
func (s *Service) Stats(ctx context.Context, region string, days int) (model.StatsSummary, error) {
	obs, err := s.observations(ctx, region, s.days(days, s.summaryDays))
	if err != nil {
		return model.StatsSummary{}, s.viewFailed(ctx, model.ViewStats, err)
	}
	hs, err := s.hotspots(ctx, region)
	if err != nil {
		return model.StatsSummary{}, s.viewFailed(ctx, model.ViewStats, err)
	}
	out := aggregate.Summarize(obs, hs)
	status := model.StatusOK
	if out.TotalObservations == 0 && out.TotalHotspots == 0 {
		status = model.StatusNoData
	}
	s.viewComputed(model.ViewStats, status, out.TotalObservations)
	return out, nil
}

// Search returns the first observation of every species whose name
// contains query. A blank query fails before anything is fetched.
func (s *Service) Search(ctx context.Context, region string, days int, query string) (model.List[model.Observation], error) {
	if strings.TrimSpace(query) == "" {
		return model.List[model.Observation]{}, s.viewFailed(ctx, model.ViewSearch, search.ErrEmptyQuery)
	}
	obs, err := s.observations(ctx, region, s.days(days, s.summaryDays))
	if err != nil {
		return model.List[model.Observation]{}, s.viewFailed(ctx, model.ViewSearch, err)
	}
	out, err := search.Search(obs, query)
	if err != nil {
		return model.List[model.Observation]{}, s.viewFailed(ctx, model.ViewSearch, err)
	}
	s.viewComputed(model.ViewSearch, out.Status, out.Len())
	return out, nil
}

// Gallery joins the latest sighting of each species with the photo table,
// newest first. Without any photo mappings nothing is fetched and the
// gallery is empty.
func (s *Service) Gallery(ctx context.Context, region string, days int) (model.List[model.PhotoObservation], error) {
	if len(s.photos) == 0 {
		out := gallery.Join(nil, nil)
		s.viewComputed(model.ViewGallery, out.Status, 0)
		return out, nil
	}
	obs, err := s.observations(ctx, region, s.days(days, s.summaryDays))
	if err != nil {
		return model.List[model.PhotoObservation]{}, s.viewFailed(ctx, model.ViewGallery, err)
	}
	out := gallery.Join(aggregate.MostRecentPerSpecies(obs).Items, s.photos)
	s.viewComputed(model.ViewGallery, out.Status, out.Len())
	return out, nil
}

func (s *Service) observations(ctx context.Context, region string, days int) ([]model.Observation, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	if days < 1 || days > maxDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", model.ErrInvalidInput, maxDays, days)
	}
	return s.source.RecentObservations(ctx, s.region(region), days)
}

func (s *Service) hotspots(ctx context.Context, region string) ([]model.Hotspot, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	return s.source.Hotspots(ctx, s.region(region))
}

func (s *Service) days(days, fallback int) int {
	if days == 0 {
		return fallback
	}
	return days
}

func (s *Service) viewComputed(view string, status model.Status, items int) {
	metrics.RecordViewComputed(view, string(status), items)
}

func (s *Service) viewFailed(ctx context.Context, view string, err error) error {
	code := ErrorCode(err)
	metrics.RecordViewError(view, code)
	s.logger.Warn(ctx, "view failed",
		logger.String("view", view),
		logger.String("code", code),
		logger.Error(err),
	)
	return err
}
