package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/birdboard/internal/adapters/ebird"
	"github.com/okian/birdboard/internal/adapters/viewstate"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/pkg/logger"
)

// Error codes shared by dashboards, the HTTP API and the CLI.
const (
	CodeBadRequest           = "bad_request"
	CodeConfiguration        = "configuration_error"
	CodeUpstreamUnauthorized = "upstream_unauthorized"
	CodeNotFound             = "not_found"
	CodeUpstream             = "upstream_error"
	CodeUpstreamFormat       = "upstream_format"
	CodeBackpressure         = "backpressure"
	CodeInternal             = "internal_error"
)

// Dashboard computes every view for params concurrently. A failing view
// never cancels the others: its slot carries the error and the rest are
// still filled. The returned error is the first view failure, if any.
func (s *Service) Dashboard(ctx context.Context, params model.DashboardParams) (model.Dashboard, error) {
	params, err := s.dashboardParams(params)
	if err != nil {
		return model.Dashboard{Params: params}, err
	}

	d := model.Dashboard{Params: params}
	var g errgroup.Group

	g.Go(func() error {
		v, err := s.Recent(ctx, params.Region, params.RecentDays)
		d.Recent = result(v, err)
		return tagged(model.ViewRecent, err)
	})
	g.Go(func() error {
		v, err := s.Species(ctx, params.Region, params.Days)
		d.Species = result(v, err)
		return tagged(model.ViewSpecies, err)
	})
	g.Go(func() error {
		v, err := s.Hotspots(ctx, params.Region)
		d.Hotspots = result(v, err)
		return tagged(model.ViewHotspots, err)
	})
	g.Go(func() error {
		v, err := s.Stats(ctx, params.Region, params.Days)
		d.Stats = result(v, err)
		return tagged(model.ViewStats, err)
	})
	g.Go(func() error {
		v, err := s.Gallery(ctx, params.Region, params.Days)
		d.Gallery = result(v, err)
		return tagged(model.ViewGallery, err)
	})

	err = g.Wait()
	d.GeneratedAt = time.Now().UTC()
	if err != nil {
		s.logger.Warn(ctx, "dashboard incomplete",
			logger.String("region", params.Region),
			logger.Error(err),
		)
	}
	return d, err
}

func (s *Service) dashboardParams(p model.DashboardParams) (model.DashboardParams, error) {
	p.Region = s.region(p.Region)
	p.RecentDays = s.days(p.RecentDays, s.recentDays)
	p.Days = s.days(p.Days, s.summaryDays)
	for _, days := range []int{p.RecentDays, p.Days} {
		if days < 1 || days > maxDays {
			return p, fmt.Errorf("%w: days must be between 1 and %d, got %d", model.ErrInvalidInput, maxDays, days)
		}
	}
	return p, nil
}

func result[T any](v T, err error) model.ViewResult[T] {
	if err != nil {
		return model.ViewResult[T]{Data: v, Err: err, Error: ViewErrorOf(err)}
	}
	return model.ViewResult[T]{Data: v}
}

func tagged(view string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s view: %w", view, err)
}

// ViewErrorOf converts err into its renderable form.
func ViewErrorOf(err error) *model.ViewError {
	if err == nil {
		return nil
	}
	return &model.ViewError{Code: ErrorCode(err), Message: Message(err)}
}

// Message returns the user facing text for err.
func Message(err error) string {
	var e *ebird.Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	var upstream *ebird.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidInput):
		return CodeBadRequest
	case errors.Is(err, ErrBackpressure):
		return CodeBackpressure
	case errors.Is(err, ebird.ErrConfiguration), errors.Is(err, ErrNoSource):
		return CodeConfiguration
	case errors.Is(err, ebird.ErrUnauthorized):
		return CodeUpstreamUnauthorized
	case errors.Is(err, ebird.ErrNotFound), errors.Is(err, viewstate.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ebird.ErrFormat):
		return CodeUpstreamFormat
	case errors.Is(err, ebird.ErrAPI), errors.As(err, &upstream):
		return CodeUpstream
	default:
		return CodeInternal
	}
}
