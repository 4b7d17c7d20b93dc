package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/birdboard/internal/adapters/ebird"
	service "github.com/okian/birdboard/internal/app"
	"github.com/okian/birdboard/internal/domain/model"
)

type call struct {
	name   string
	region string
	days   int
	query  string
}

type fakeBackend struct {
	mu        sync.Mutex
	calls     []call
	err       error
	dashboard model.Dashboard
	dashErr   error
	params    []model.DashboardParams
}

func (f *fakeBackend) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeBackend) Recent(_ context.Context, region string, days int) (model.List[model.Observation], error) {
	f.record(call{name: "recent", region: region, days: days})
	two := 2
	return model.NewList([]model.Observation{
		{SpeciesCode: "amecro", ComName: "American Crow", ObsDt: "2024-05-03 09:30", HowMany: &two, LocName: "Montrose Point"},
		{SpeciesCode: "norcar", ComName: "Northern Cardinal", ObsDt: "2024-05-02 18:05"},
	}), f.err
}

func (f *fakeBackend) Species(_ context.Context, region string, days int) (model.List[model.SpeciesAggregate], error) {
	f.record(call{name: "species", region: region, days: days})
	return model.NewList([]model.SpeciesAggregate{{SpeciesCode: "amecro", ComName: "American Crow", SciName: "Corvus brachyrhynchos", Count: 1234}}), f.err
}

func (f *fakeBackend) Hotspots(_ context.Context, region string) (model.List[model.Hotspot], error) {
	f.record(call{name: "hotspots", region: region})
	lat, lng, n := 41.96312, -87.63191, 340
	return model.NewList([]model.Hotspot{{Name: "Montrose Point", Lat: &lat, Lng: &lng, NumSpeciesAllTime: &n}}), f.err
}

func (f *fakeBackend) Stats(_ context.Context, region string, days int) (model.StatsSummary, error) {
	f.record(call{name: "stats", region: region, days: days})
	return model.StatsSummary{TotalObservations: 12345, TotalSpecies: 3, TotalChecklists: 4, TotalHotspots: 5}, f.err
}

func (f *fakeBackend) Search(_ context.Context, region string, days int, query string) (model.List[model.Observation], error) {
	f.record(call{name: "search", region: region, days: days, query: query})
	return model.NewList[model.Observation](nil), f.err
}

func (f *fakeBackend) Gallery(_ context.Context, region string, days int) (model.List[model.PhotoObservation], error) {
	f.record(call{name: "gallery", region: region, days: days})
	return model.NewList[model.PhotoObservation](nil), f.err
}

func (f *fakeBackend) Dashboard(_ context.Context, params model.DashboardParams) (model.Dashboard, error) {
	f.mu.Lock()
	f.params = append(f.params, params)
	f.mu.Unlock()
	return f.dashboard, f.dashErr
}

func withSleep(fn func(context.Context, time.Duration) bool) Option {
	return func(r *runner) { r.sleepFor = fn }
}

func execute(b Backend, args ...string) (string, string, error) {
	return executeWith([]Option{WithBackend(b)}, args...)
}

func executeWith(opts []Option, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	root := NewRootCommand(append(opts, WithOutput(&out, &errOut))...)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestCommands(t *testing.T) {
	Convey("Given birdctl with a fake backend", t, func() {
		b := &fakeBackend{}

		Convey("When running recent with flags", func() {
			out, _, err := execute(b, "recent", "--region", "US-NY", "--days", "7")

			Convey("Then the flags should reach the backend", func() {
				So(err, ShouldBeNil)
				So(b.calls, ShouldResemble, []call{{name: "recent", region: "US-NY", days: 7}})
			})

			Convey("And rows should be human formatted", func() {
				So(out, ShouldContainSubstring, "SPECIES")
				So(out, ShouldContainSubstring, "May 3, 2024, 09:30 AM")
				So(out, ShouldContainSubstring, "May 2, 2024, 06:05 PM")
				So(out, ShouldContainSubstring, "Unknown")
				lines := strings.Split(strings.TrimSpace(out), "\n")
				So(lines, ShouldHaveLength, 3)
				So(strings.Fields(lines[2])[2], ShouldEqual, "X")
			})
		})

		Convey("When running stats", func() {
			out, _, err := execute(b, "stats")

			Convey("Then totals should carry thousands separators", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "12,345")
				So(b.calls[0].days, ShouldEqual, 0)
			})
		})

		Convey("When running species", func() {
			out, _, err := execute(b, "species")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "1,234")
			So(out, ShouldContainSubstring, "Corvus brachyrhynchos")
		})

		Convey("When running hotspots", func() {
			out, _, err := execute(b, "hotspots", "-r", "IL")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "41.9631, -87.6319")
			So(b.calls[0].region, ShouldEqual, "IL")
		})

		Convey("When searching with several words", func() {
			out, _, err := execute(b, "search", "great", "blue")

			Convey("Then they should be joined into one query", func() {
				So(err, ShouldBeNil)
				So(b.calls[0].query, ShouldEqual, "great blue")
				So(out, ShouldContainSubstring, "No matching species.")
			})
		})

		Convey("When searching without a query", func() {
			_, _, err := execute(b, "search")
			So(err, ShouldNotBeNil)
			So(b.calls, ShouldBeEmpty)
		})

		Convey("When the gallery is empty", func() {
			out, _, err := execute(b, "gallery")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, noData)
		})

		Convey("When asking for JSON", func() {
			out, _, err := execute(b, "stats", "--json")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, `"totalObservations": 12345`)
		})

		Convey("When days is out of range", func() {
			_, _, err := execute(b, "recent", "--days", "31")

			Convey("Then the command should fail before any call", func() {
				So(errors.Is(err, ErrBadFlag), ShouldBeTrue)
				So(b.calls, ShouldBeEmpty)
			})
		})

		Convey("When the backend fails", func() {
			b.err = &ebird.Error{Op: "ebird.recent_observations", Kind: ebird.ErrUnauthorized, StatusCode: 401}
			_, _, err := execute(b, "recent")

			Convey("Then the error should be returned", func() {
				So(errors.Is(err, ebird.ErrUnauthorized), ShouldBeTrue)
			})
		})
	})
}

func TestDashboardCommand(t *testing.T) {
	Convey("Given a dashboard with one failed view", t, func() {
		viewErr := &ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrNotFound, StatusCode: 404}
		b := &fakeBackend{
			dashboard: model.Dashboard{
				Params:      model.DashboardParams{Region: "IL", RecentDays: 3, Days: 30},
				GeneratedAt: time.Now(),
				Recent:      model.ViewResult[model.List[model.Observation]]{Data: model.NewList[model.Observation](nil)},
				Species:     model.ViewResult[model.List[model.SpeciesAggregate]]{Data: model.NewList[model.SpeciesAggregate](nil)},
				Hotspots:    model.ViewResult[model.List[model.Hotspot]]{Err: viewErr, Error: service.ViewErrorOf(viewErr)},
				Stats:       model.ViewResult[model.StatsSummary]{Data: model.StatsSummary{TotalObservations: 10}},
				Gallery:     model.ViewResult[model.List[model.PhotoObservation]]{Data: model.NewList[model.PhotoObservation](nil)},
			},
			dashErr: fmt.Errorf("hotspots view: %w", viewErr),
		}

		Convey("When printing it", func() {
			out, _, err := execute(b, "dashboard", "--recent-days", "2", "--days", "14")

			Convey("Then the failed view is reported in place and the command succeeds", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "== Top hotspots ==")
				So(out, ShouldContainSubstring, "error (not_found): Data not found for this region.")
				So(out, ShouldContainSubstring, "== Stats ==")
				So(b.params[0], ShouldResemble, model.DashboardParams{RecentDays: 2, Days: 14})
			})
		})
	})

	Convey("Given a dashboard where every view failed", t, func() {
		viewErr := &ebird.Error{Op: "ebird.recent_observations", Kind: ebird.ErrConfiguration}
		failed := service.ViewErrorOf(viewErr)
		b := &fakeBackend{
			dashboard: model.Dashboard{
				GeneratedAt: time.Now(),
				Recent:      model.ViewResult[model.List[model.Observation]]{Err: viewErr, Error: failed},
				Species:     model.ViewResult[model.List[model.SpeciesAggregate]]{Err: viewErr, Error: failed},
				Hotspots:    model.ViewResult[model.List[model.Hotspot]]{Err: viewErr, Error: failed},
				Stats:       model.ViewResult[model.StatsSummary]{Err: viewErr, Error: failed},
				Gallery:     model.ViewResult[model.List[model.PhotoObservation]]{Err: viewErr, Error: failed},
			},
			dashErr: viewErr,
		}

		Convey("Then the command should fail", func() {
			_, _, err := execute(b, "dashboard")
			So(errors.Is(err, ErrViewFailed), ShouldBeTrue)
			So(errors.Is(err, ebird.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given watch mode with a short interval", t, func() {
		b := &fakeBackend{dashboard: model.Dashboard{GeneratedAt: time.Now()}}
		var waits []time.Duration
		sleep := func(_ context.Context, d time.Duration) bool {
			waits = append(waits, d)
			return len(waits) < 3
		}

		Convey("When watching", func() {
			_, errOut, err := executeWith([]Option{WithBackend(b), withSleep(sleep)}, "dashboard", "--watch", "--interval", "5")

			Convey("Then the interval is raised to the minimum and the dashboard recomputed each round", func() {
				So(err, ShouldBeNil)
				So(b.params, ShouldHaveLength, 3)
				So(waits[0], ShouldEqual, 30*time.Second)
				So(errOut, ShouldContainSubstring, "Updating every 30 seconds")
			})
		})
	})
}

func TestFormatting(t *testing.T) {
	Convey("Given values to format", t, func() {
		Convey("Then dates use the long form and bad dates pass through", func() {
			So(FormatObsDate("2024-01-02 15:04"), ShouldEqual, "Jan 2, 2024, 03:04 PM")
			So(FormatObsDate("2024-01-02"), ShouldEqual, "Jan 2, 2024, 12:00 AM")
			So(FormatObsDate("soon"), ShouldEqual, "soon")
		})

		Convey("Then missing counts render as X", func() {
			n := 1500
			So(FormatCount(nil), ShouldEqual, "X")
			So(FormatCount(&n), ShouldEqual, "1,500")
		})

		Convey("Then blank locations render as Unknown", func() {
			So(FormatLocation("  "), ShouldEqual, "Unknown")
			So(FormatLocation("Pond"), ShouldEqual, "Pond")
		})

		Convey("Then coordinates render as lat, lng", func() {
			lat, lng := 1.5, -2.25
			So(FormatCoordinates(&lat, &lng), ShouldEqual, "1.5000, -2.2500")
			So(FormatCoordinates(nil, &lng), ShouldEqual, "Unknown")
		})
	})
}
