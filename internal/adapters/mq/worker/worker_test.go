package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/birdboard/internal/adapters/mq/queue"
	"github.com/okian/birdboard/internal/adapters/mq/worker"
	"github.com/okian/birdboard/internal/adapters/viewstate"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockRunner returns canned dashboards, optionally blocking per region.
type mockRunner struct {
	mu    sync.Mutex
	calls int
	err   error
	fail  bool
	gate  map[string]chan struct{}
}

func (r *mockRunner) Dashboard(ctx context.Context, p model.DashboardParams) (model.Dashboard, error) {
	r.mu.Lock()
	r.calls++
	gate := r.gate[p.Region]
	err, fail := r.err, r.fail
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Dashboard{}, ctx.Err()
		}
	}

	d := model.Dashboard{Params: p, GeneratedAt: time.Now()}
	if fail {
		verr := errors.New("upstream down")
		d.Recent.Err, d.Species.Err, d.Hotspots.Err, d.Stats.Err, d.Gallery.Err = verr, verr, verr, verr, verr
		return d, verr
	}
	if err != nil {
		d.Gallery.Err = err
	}
	return d, err
}

func (r *mockRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type brokenApplier struct{}

func (brokenApplier) Apply(context.Context, string, uint64, model.Dashboard) error {
	return errors.New("disk on fire")
}

func params(region string) model.DashboardParams {
	return model.DashboardParams{Region: region, RecentDays: 3, Days: 30}
}

func TestRefreshWorkerProcess(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a worker over an in-memory view store", t, func() {
		store := viewstate.NewMemory()
		runner := &mockRunner{}
		w := worker.NewRefreshWorker(queue.NewInMemoryQueue(), runner, store, worker.WithName("test-worker"))

		convey.Convey("When the request carries the latest generation", func() {
			gen := store.Issue(ctx, "IL")
			outcome, err := w.Process(ctx, worker.Request{ID: "r1", Params: params("IL"), Generation: gen})

			convey.Convey("Then the dashboard becomes visible", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeApplied)
				d, err := store.Latest(ctx, "IL")
				convey.So(err, convey.ShouldBeNil)
				convey.So(d.Generation, convey.ShouldEqual, gen)
			})
		})

		convey.Convey("When a newer generation was issued meanwhile", func() {
			old := store.Issue(ctx, "IL")
			store.Issue(ctx, "IL")
			outcome, err := w.Process(ctx, worker.Request{ID: "r1", Params: params("IL"), Generation: old})

			convey.Convey("Then the result is dropped as stale", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeStale)
				_, err := store.Latest(ctx, "IL")
				convey.So(errors.Is(err, viewstate.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When one view fails", func() {
			runner.err = errors.New("gallery broke")
			gen := store.Issue(ctx, "IL")
			outcome, err := w.Process(ctx, worker.Request{ID: "r1", Params: params("IL"), Generation: gen})

			convey.Convey("Then the partial dashboard is still applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeApplied)
				d, _ := store.Latest(ctx, "IL")
				convey.So(d.Gallery.OK(), convey.ShouldBeFalse)
				convey.So(d.Recent.OK(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When every view fails", func() {
			runner.fail = true
			gen := store.Issue(ctx, "IL")
			outcome, err := w.Process(ctx, worker.Request{ID: "r1", Params: params("IL"), Generation: gen})

			convey.Convey("Then nothing is applied", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(outcome, convey.ShouldEqual, worker.OutcomeFailed)
				_, err := store.Latest(ctx, "IL")
				convey.So(errors.Is(err, viewstate.ErrNotFound), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an applier that fails for other reasons", t, func() {
		w := worker.NewRefreshWorker(queue.NewInMemoryQueue(), &mockRunner{}, brokenApplier{})

		convey.Convey("Then the failure is reported", func() {
			outcome, err := w.Process(ctx, worker.Request{ID: "r1", Params: params("IL"), Generation: 1})
			convey.So(outcome, convey.ShouldEqual, worker.OutcomeFailed)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a running pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		store := viewstate.NewMemory()
		runner := &mockRunner{gate: map[string]chan struct{}{}}
		pool := worker.NewPool(3, q, runner, store, worker.WithTimeout(5*time.Second))
		pool.Start(ctx)
		defer func() {
			_ = q.Close()
			_ = pool.Shutdown(context.Background())
		}()

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When two refreshes for one region complete out of order", func() {
			slow := make(chan struct{})
			runner.mu.Lock()
			runner.gate["IL"] = slow
			runner.mu.Unlock()

			g1 := store.Issue(ctx, "IL")
			convey.So(q.Enqueue(ctx, worker.Request{ID: "old", Params: params("IL"), Generation: g1}), convey.ShouldBeNil)
			waitFor(func() bool { return runner.callCount() == 1 })

			runner.mu.Lock()
			delete(runner.gate, "IL")
			runner.mu.Unlock()

			g2 := store.Issue(ctx, "IL")
			convey.So(q.Enqueue(ctx, worker.Request{ID: "new", Params: params("IL"), Generation: g2}), convey.ShouldBeNil)
			waitFor(func() bool { d, err := store.Latest(ctx, "IL"); return err == nil && d.Generation == g2 })
			close(slow)
			waitFor(func() bool { return runner.callCount() == 2 })
			time.Sleep(20 * time.Millisecond)

			convey.Convey("Then only the newer one stays visible", func() {
				d, err := store.Latest(ctx, "IL")
				convey.So(err, convey.ShouldBeNil)
				convey.So(d.Generation, convey.ShouldEqual, g2)
			})
		})

		convey.Convey("When many regions are refreshed", func() {
			regions := []string{"IL", "US-NY", "US-CA", "GB", "IN"}
			gens := map[string]uint64{}
			for _, r := range regions {
				gens[r] = store.Issue(ctx, r)
				convey.So(q.Enqueue(ctx, worker.Request{ID: r, Params: params(r), Generation: gens[r]}), convey.ShouldBeNil)
			}

			convey.Convey("Then each region gets its dashboard", func() {
				waitFor(func() bool {
					for _, r := range regions {
						if _, err := store.Latest(ctx, r); err != nil {
							return false
						}
					}
					return true
				})
				for _, r := range regions {
					d, err := store.Latest(ctx, r)
					convey.So(err, convey.ShouldBeNil)
					convey.So(d.Generation, convey.ShouldEqual, gens[r])
				}
			})
		})
	})

	convey.Convey("Given a pool that was never started", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), &mockRunner{}, viewstate.NewMemory())

		convey.Convey("Then it uses the default size and shuts down at once", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a pool whose context is cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		pool := worker.NewPool(2, queue.NewInMemoryQueue(), &mockRunner{}, viewstate.NewMemory())
		pool.Start(ctx)
		cancel()

		convey.Convey("Then every worker exits", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func waitFor(cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
