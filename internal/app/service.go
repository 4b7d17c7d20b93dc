// Package service wires the observation source, the view projections and
// the refresh pipeline into the operations served by the HTTP API and CLI.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/birdboard/internal/adapters/mq/queue"
	"github.com/okian/birdboard/internal/adapters/mq/worker"
	"github.com/okian/birdboard/internal/adapters/viewstate"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/pkg/logger"
	"github.com/okian/birdboard/pkg/metrics"
)

// Defaults applied when no option overrides them.
const (
	DefaultRegion      = "IL"
	DefaultRecentDays  = 3
	DefaultSummaryDays = 30

	defaultWorkerCount    = 2
	defaultQueueSize      = 64
	defaultRefreshTimeout = time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Source fetches raw data for a region.
type Source interface {
	RecentObservations(ctx context.Context, region string, back int) ([]model.Observation, error)
	Hotspots(ctx context.Context, region string) ([]model.Hotspot, error)
}

// Service serves dashboard views. The view methods are usable without
// Start; the refresh pipeline needs it.
type Service struct {
	mu sync.RWMutex

	source Source
	photos model.PhotoMapping
	views  viewstate.Store

	defaultRegion   string
	recentDays      int
	summaryDays     int
	workerCount     int
	queueSize       int
	refreshInterval time.Duration
	refreshTimeout  time.Duration

	// issueMu pairs each generation with its enqueue so a rejected
	// request never supersedes an accepted one.
	issueMu sync.Mutex

	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		views:          viewstate.NewMemory(),
		defaultRegion:  DefaultRegion,
		recentDays:     DefaultRecentDays,
		summaryDays:    DefaultSummaryDays,
		workerCount:    defaultWorkerCount,
		queueSize:      defaultQueueSize,
		refreshTimeout: defaultRefreshTimeout,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the refresh workers and, if configured, the periodic
// refresh of the default region.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting birdboard service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s, s.views,
		worker.WithLogger(s.logger),
		worker.WithTimeout(s.refreshTimeout),
	)
	s.pool.Start(runCtx)
	s.started = true

	if s.refreshInterval > 0 {
		s.loops.Add(1)
		go s.autoRefresh(runCtx)
	}

	s.logger.Info(ctx, "birdboard service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("defaultRegion", s.defaultRegion),
		logger.Duration("refreshInterval", s.refreshInterval),
	)
	return nil
}

// Stop gracefully shuts down the refresh pipeline.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping birdboard service...")

	if !s.queue.IsClosed() {
		_ = s.queue.Close()
	}
	s.cancel()
	s.loops.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "refresh workers did not stop cleanly", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "birdboard service stopped")
}

// RequestRefresh schedules a background dashboard computation. The
// returned request carries the generation that must still be current when
// the result is applied.
func (s *Service) RequestRefresh(ctx context.Context, params model.DashboardParams) (model.RefreshRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.RefreshRequest{}, ErrNotStarted
	}
	params, err := s.dashboardParams(params)
	if err != nil {
		return model.RefreshRequest{}, err
	}

	req, err := s.enqueue(ctx, params)
	if err != nil {
		if errors.Is(err, queue.ErrFull) {
			return model.RefreshRequest{}, errors.Join(ErrBackpressure, err)
		}
		return model.RefreshRequest{}, err
	}

	s.logger.Debug(ctx, "refresh enqueued",
		logger.String("request_id", req.ID),
		logger.String("region", params.Region),
		logger.Uint64("generation", req.Generation),
	)
	return req, nil
}

// Latest returns the last dashboard applied for region.
func (s *Service) Latest(ctx context.Context, region string) (model.Dashboard, error) {
	return s.views.Latest(ctx, s.region(region))
}

// DefaultParams returns the dashboard parameters used when none are given.
func (s *Service) DefaultParams() model.DashboardParams {
	return model.DashboardParams{
		Region:     s.defaultRegion,
		RecentDays: s.recentDays,
		Days:       s.summaryDays,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"defaultRegion":   s.defaultRegion,
		"recentDays":      s.recentDays,
		"summaryDays":     s.summaryDays,
		"refreshInterval": s.refreshInterval.String(),
		"photoMappings":   len(s.photos),
		"sourceReady":     s.source != nil,
	}
	if c, ok := s.source.(interface{ Configured() bool }); ok {
		stats["sourceReady"] = c.Configured()
	}

	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		metrics.UpdateRefreshQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	if m, ok := s.views.(*viewstate.Memory); ok {
		stats["regions"] = m.Regions()
	}
	return stats
}

func (s *Service) autoRefresh(ctx context.Context) {
	defer s.loops.Done()

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	s.scheduleDefault(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduleDefault(ctx)
		}
	}
}

func (s *Service) scheduleDefault(ctx context.Context) {
	if s.queue.IsClosed() {
		return
	}
	params := s.DefaultParams()
	if _, err := s.enqueue(ctx, params); err != nil {
		s.logger.Warn(ctx, "scheduled refresh not enqueued",
			logger.String("region", params.Region),
			logger.Error(err),
		)
	}
}

// enqueue issues a generation for params and queues the request. A request
// the queue refuses gives its generation back. It does not take s.mu, so
// the refresh loop can call it while Start or Stop hold the lock.
func (s *Service) enqueue(ctx context.Context, params model.DashboardParams) (model.RefreshRequest, error) {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	req := model.RefreshRequest{
		ID:          uuid.NewString(),
		Params:      params,
		Generation:  s.views.Issue(ctx, params.Region),
		RequestedAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.views.Revoke(ctx, params.Region, req.Generation)
		return model.RefreshRequest{}, err
	}
	return req, nil
}

func (s *Service) region(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return s.defaultRegion
	}
	return region
}
