package service

import (
	"maps"
	"strings"
	"time"

	"github.com/okian/birdboard/internal/adapters/viewstate"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets where observations and hotspots come from.
func WithSource(src Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithPhotoMapping sets the species -> photo post table used by the gallery.
func WithPhotoMapping(m model.PhotoMapping) Option {
	return func(s *Service) {
		s.photos = maps.Clone(m)
	}
}

// WithDefaultRegion sets the region used when a request names none.
func WithDefaultRegion(region string) Option {
	return func(s *Service) {
		if region = strings.TrimSpace(region); region != "" {
			s.defaultRegion = strings.ToUpper(region)
		}
	}
}

// WithRecentDays sets the default lookback for the recent view.
func WithRecentDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.recentDays = days
		}
	}
}

// WithSummaryDays sets the default lookback for every other view.
func WithSummaryDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.summaryDays = days
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending refreshes.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval enables periodic refreshes of the default region.
// Zero disables them.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithRefreshTimeout bounds a single background refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// WithViewStore replaces the in-memory dashboard store.
func WithViewStore(store viewstate.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.views = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
