// Package worker computes queued dashboard refreshes and applies them
// through the generation guard.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/birdboard/internal/adapters/viewstate"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/pkg/logger"
	"github.com/okian/birdboard/pkg/metrics"
)

const (
	defaultWorkers        = 2
	defaultRefreshTimeout = time.Minute
	workerShutdownTimeout = 5 * time.Second
)

// Request abstracts what workers read off the queue.
type Request = model.RefreshRequest

// Runner computes a dashboard. A partially failed dashboard is returned
// together with its first error; one with a zero GeneratedAt was not
// computed at all.
type Runner interface {
	Dashboard(ctx context.Context, params model.DashboardParams) (model.Dashboard, error)
}

// Applier makes a computed dashboard visible if its generation is current.
type Applier interface {
	Apply(ctx context.Context, region string, gen uint64, d model.Dashboard) error
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// Outcome of one processed request.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeStale   Outcome = "stale"
	OutcomeFailed  Outcome = "failed"
)

// RefreshWorker drains the queue one request at a time.
type RefreshWorker struct {
	queue   Queue
	runner  Runner
	applier Applier
	name    string
	timeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewRefreshWorker creates a worker with configuration options.
func NewRefreshWorker(queue Queue, runner Runner, applier Applier, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:    queue,
		runner:   runner,
		applier:  applier,
		name:     "worker",
		timeout:  defaultRefreshTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes requests until ctx is done, Shutdown is called or the
// queue is closed and drained.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			_, _ = w.Process(ctx, req)
		}
	}
}

// Shutdown stops the worker after its current request.
func (w *RefreshWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *RefreshWorker) Done() <-chan struct{} { return w.done }

// Process computes and applies one request.
func (w *RefreshWorker) Process(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRefreshDuration(float64(time.Since(start).Milliseconds()))
	}()

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	d, err := w.runner.Dashboard(runCtx, req.Params)
	if d.GeneratedAt.IsZero() || d.AllFailed() {
		metrics.RecordRefreshFailed()
		w.logger.Warn(ctx, "refresh failed",
			logger.String("request_id", req.ID),
			logger.String("region", req.Params.Region),
			logger.Uint64("generation", req.Generation),
			logger.Error(err),
		)
		if err == nil {
			err = errors.New("no view computed")
		}
		return OutcomeFailed, fmt.Errorf("refresh %s: %w", req.ID, err)
	}
	if err != nil {
		w.logger.Warn(ctx, "refresh partially failed",
			logger.String("request_id", req.ID),
			logger.String("region", req.Params.Region),
			logger.Error(err),
		)
	}

	if err := w.applier.Apply(ctx, req.Params.Region, req.Generation, d); err != nil {
		if errors.Is(err, viewstate.ErrStale) {
			metrics.RecordRefreshStale()
			w.logger.Debug(ctx, "dropped stale refresh",
				logger.String("request_id", req.ID),
				logger.String("region", req.Params.Region),
				logger.Uint64("generation", req.Generation),
			)
			return OutcomeStale, nil
		}
		metrics.RecordRefreshFailed()
		w.logger.Error(ctx, "apply failed", logger.String("request_id", req.ID), logger.Error(err))
		return OutcomeFailed, fmt.Errorf("apply %s: %w", req.ID, err)
	}

	metrics.RecordRefreshApplied()
	w.logger.Info(ctx, "applied refresh",
		logger.String("request_id", req.ID),
		logger.String("region", req.Params.Region),
		logger.Uint64("generation", req.Generation),
		logger.Duration("elapsed", time.Since(start)),
	)
	return OutcomeApplied, nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*RefreshWorker
	started bool
}

// NewPool creates a pool of count workers. Options apply to every worker.
func NewPool(count int, queue Queue, runner Runner, applier Applier, opts ...Option) *Pool {
	if count < 1 {
		count = defaultWorkers
	}
	p := &Pool{workers: make([]*RefreshWorker, count)}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewRefreshWorker(queue, runner, applier, wopts...)
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown stops every worker and waits for them, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	if !p.started {
		return nil
	}

	var errs []error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			w.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, fmt.Errorf("worker %d: %w", i, ctx.Err()))
		}
	}
	metrics.UpdateWorkerCount(0)
	return errors.Join(errs...)
}

// Stop shuts the pool down with the default timeout.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()
	_ = p.Shutdown(ctx)
}
