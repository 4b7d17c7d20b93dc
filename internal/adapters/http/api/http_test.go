package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/birdboard/internal/adapters/ebird"
	"github.com/okian/birdboard/internal/adapters/http/api"
	"github.com/okian/birdboard/internal/adapters/viewstate"
	service "github.com/okian/birdboard/internal/app"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/internal/domain/search"
)

type viewCall struct {
	view   string
	region string
	days   int
	query  string
}

// mockDependencies records every call and answers from canned values.
type mockDependencies struct {
	calls []viewCall
	err   error

	dashboard  model.Dashboard
	dashErr    error
	dashParams model.DashboardParams

	refreshErr    error
	refreshParams model.DashboardParams

	latest    model.Dashboard
	latestErr error
}

func (m *mockDependencies) record(view, region string, days int) {
	m.calls = append(m.calls, viewCall{view: view, region: region, days: days})
}

func (m *mockDependencies) Recent(_ context.Context, region string, days int) (model.List[model.Observation], error) {
	m.record(model.ViewRecent, region, days)
	return model.NewList([]model.Observation{{SpeciesCode: "amecro", ComName: "American Crow"}}), m.err
}

func (m *mockDependencies) Species(_ context.Context, region string, days int) (model.List[model.SpeciesAggregate], error) {
	m.record(model.ViewSpecies, region, days)
	return model.NewList([]model.SpeciesAggregate{{SpeciesCode: "amecro", Count: 4}}), m.err
}

func (m *mockDependencies) Hotspots(_ context.Context, region string) (model.List[model.Hotspot], error) {
	m.record(model.ViewHotspots, region, 0)
	return model.NewList[model.Hotspot](nil), m.err
}

func (m *mockDependencies) Stats(_ context.Context, region string, days int) (model.StatsSummary, error) {
	m.record(model.ViewStats, region, days)
	return model.StatsSummary{TotalObservations: 10, TotalSpecies: 3, TotalChecklists: 4, TotalHotspots: 5}, m.err
}

func (m *mockDependencies) Search(_ context.Context, region string, days int, query string) (model.List[model.Observation], error) {
	m.calls = append(m.calls, viewCall{view: model.ViewSearch, region: region, days: days, query: query})
	return model.NewList[model.Observation](nil), m.err
}

func (m *mockDependencies) Gallery(_ context.Context, region string, days int) (model.List[model.PhotoObservation], error) {
	m.record(model.ViewGallery, region, days)
	return model.NewList[model.PhotoObservation](nil), m.err
}

func (m *mockDependencies) Dashboard(_ context.Context, params model.DashboardParams) (model.Dashboard, error) {
	m.dashParams = params
	return m.dashboard, m.dashErr
}

func (m *mockDependencies) RequestRefresh(_ context.Context, params model.DashboardParams) (model.RefreshRequest, error) {
	m.refreshParams = params
	if m.refreshErr != nil {
		return model.RefreshRequest{}, m.refreshErr
	}
	return model.RefreshRequest{ID: "req-1", Params: params, Generation: 7, RequestedAt: time.Now()}, nil
}

func (m *mockDependencies) Latest(_ context.Context, _ string) (model.Dashboard, error) {
	return m.latest, m.latestErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"workers": 2}}).Register(context.Background(), mux)
	return mux
}

func serve(mux http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Then every view route should answer with JSON", func() {
			for _, path := range []string{"/api/recent", "/api/species", "/api/hotspots", "/api/stats", "/api/search?q=crow", "/api/gallery"} {
				w := serve(mux, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			}
			So(deps.calls, ShouldHaveLength, 6)
		})

		Convey("And health endpoint should expose metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And service stats should be served", func() {
			w := serve(mux, http.MethodGet, "/service/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"workers":2`)
		})

		Convey("And a caller supplied request id should be echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
		})
	})
}

func TestViewsHandler(t *testing.T) {
	Convey("Given a views handler", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When query parameters are supplied", func() {
			w := serve(mux, http.MethodGet, "/api/recent?region=US-NY&days=7", "")

			Convey("Then they should reach the service unchanged", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.calls[0], ShouldResemble, viewCall{view: model.ViewRecent, region: "US-NY", days: 7})
			})

			Convey("And the body should be the view list", func() {
				var got model.List[model.Observation]
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusOK)
				So(got.Items[0].SpeciesCode, ShouldEqual, "amecro")
			})
		})

		Convey("When days is omitted", func() {
			serve(mux, http.MethodGet, "/api/species?region=IL", "")

			Convey("Then zero is passed so the service applies its default", func() {
				So(deps.calls[0].days, ShouldEqual, 0)
			})
		})

		Convey("When days is not an integer", func() {
			w := serve(mux, http.MethodGet, "/api/stats?days=many", "")

			Convey("Then it should return 400 without calling the service", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
				So(deps.calls, ShouldBeEmpty)
			})
		})

		Convey("When searching", func() {
			w := serve(mux, http.MethodGet, "/api/search?q=Warbler&region=IL&days=30", "")

			Convey("Then the query should be forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.calls[0].query, ShouldEqual, "Warbler")
				So(deps.calls[0].days, ShouldEqual, 30)
			})
		})

		Convey("When an empty list comes back", func() {
			w := serve(mux, http.MethodGet, "/api/gallery", "")

			Convey("Then it should be no_data with an empty array", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"no_data","items":[]`)
			})
		})

		Convey("When a view is requested with POST", func() {
			w := serve(mux, http.MethodPost, "/api/recent", "")

			Convey("Then it should return 405", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given service failures of every kind", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{search.ErrEmptyQuery, http.StatusBadRequest, service.CodeBadRequest},
			{&ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrConfiguration}, http.StatusServiceUnavailable, service.CodeConfiguration},
			{&ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrUnauthorized, StatusCode: 401}, http.StatusBadGateway, service.CodeUpstreamUnauthorized},
			{&ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrNotFound, StatusCode: 404}, http.StatusNotFound, service.CodeNotFound},
			{&ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrAPI, StatusCode: 500, Status: "Internal Server Error"}, http.StatusBadGateway, service.CodeUpstream},
			{&ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrTabular}, http.StatusBadGateway, service.CodeUpstreamFormat},
			{errors.New("boom"), http.StatusInternalServerError, service.CodeInternal},
		}

		for _, tc := range cases {
			deps := &mockDependencies{err: tc.err}
			w := serve(newMux(deps), http.MethodGet, "/api/hotspots", "")
			So(w.Code, ShouldEqual, tc.status)
			So(decodeError(w)["code"], ShouldEqual, tc.code)
		}
	})

	Convey("Given an upstream authorization failure", t, func() {
		deps := &mockDependencies{err: &ebird.Error{Op: "ebird.recent_observations", Kind: ebird.ErrUnauthorized, StatusCode: 401}}
		w := serve(newMux(deps), http.MethodGet, "/api/recent", "")

		Convey("Then the message should be the user facing one", func() {
			So(decodeError(w)["message"], ShouldEqual, "Invalid API key. Please check your eBird API key.")
		})
	})
}

func TestDashboardHandler(t *testing.T) {
	Convey("Given a dashboard handler", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When one view fails", func() {
			viewErr := &ebird.Error{Op: "ebird.hotspots", Kind: ebird.ErrNotFound, StatusCode: 404}
			deps.dashboard = model.Dashboard{
				Params:      model.DashboardParams{Region: "IL", RecentDays: 3, Days: 30},
				GeneratedAt: time.Now().UTC(),
				Hotspots: model.ViewResult[model.List[model.Hotspot]]{
					Err:   viewErr,
					Error: service.ViewErrorOf(viewErr),
				},
			}
			deps.dashErr = fmt.Errorf("hotspots view: %w", viewErr)
			w := serve(mux, http.MethodGet, "/api/dashboard?region=IL&recent_days=3&days=30", "")

			Convey("Then the dashboard is still returned with the per-view error", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.dashParams, ShouldResemble, model.DashboardParams{Region: "IL", RecentDays: 3, Days: 30})
				So(w.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
				So(w.Body.String(), ShouldContainSubstring, "Data not found for this region.")
			})
		})

		Convey("When the parameters are rejected", func() {
			deps.dashErr = fmt.Errorf("%w: days must be between 1 and 30, got 45", model.ErrInvalidInput)
			w := serve(mux, http.MethodGet, "/api/dashboard?days=45", "")

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, service.CodeBadRequest)
			})
		})

		Convey("When recent_days is malformed", func() {
			w := serve(mux, http.MethodGet, "/api/dashboard?recent_days=x", "")

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When no dashboard has been applied yet", func() {
			deps.latestErr = fmt.Errorf("viewstate.latest: %w", viewstate.ErrNotFound)
			w := serve(mux, http.MethodGet, "/api/dashboard/latest?region=IL", "")

			Convey("Then latest should return 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, service.CodeNotFound)
			})
		})

		Convey("When a dashboard has been applied", func() {
			deps.latest = model.Dashboard{Generation: 3, Params: model.DashboardParams{Region: "IL"}, GeneratedAt: time.Now().UTC()}
			w := serve(mux, http.MethodGet, "/api/dashboard/latest?region=IL", "")

			Convey("Then latest should return it", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"generation":3`)
			})
		})
	})
}

func TestRefreshHandler(t *testing.T) {
	Convey("Given a refresh handler", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When posting a JSON body", func() {
			w := serve(mux, http.MethodPost, "/api/refresh", `{"region":"US-CA","days":14}`)

			Convey("Then it should be accepted with a generation and request id", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var got map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got["request_id"], ShouldEqual, "req-1")
				So(got["generation"], ShouldEqual, float64(7))
				So(deps.refreshParams, ShouldResemble, model.DashboardParams{Region: "US-CA", Days: 14})
			})
		})

		Convey("When posting without a body", func() {
			w := serve(mux, http.MethodPost, "/api/refresh?region=IL&recent_days=2", "")

			Convey("Then query parameters should be used", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.refreshParams, ShouldResemble, model.DashboardParams{Region: "IL", RecentDays: 2})
			})
		})

		Convey("When the body is not JSON", func() {
			w := serve(mux, http.MethodPost, "/api/refresh", `{region`)

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the refresh queue is full", func() {
			deps.refreshErr = errors.Join(service.ErrBackpressure, errors.New("queue full"))
			w := serve(mux, http.MethodPost, "/api/refresh", "")

			Convey("Then it should return 429", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, service.CodeBackpressure)
			})
		})

		Convey("When refresh is requested with GET", func() {
			w := serve(mux, http.MethodGet, "/api/refresh", "")

			Convey("Then it should return 405", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestKindHelpers(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		Convey("Then NewKind should keep the kind matchable", func() {
			err := api.NewKind("api.get_recent", api.ErrBadRequest)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.get_recent: bad request")
		})

		Convey("Then WrapKind should keep both kind and cause", func() {
			cause := errors.New("days must be an integer")
			err := api.WrapKind("api.get_recent", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("Then Wrap should pass nil through", func() {
			So(api.Wrap("op", nil), ShouldBeNil)
		})
	})
}
