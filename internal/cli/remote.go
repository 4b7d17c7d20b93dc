package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/birdboard/internal/domain/model"
)

// maxResponseBytes bounds a single server response.
const maxResponseBytes = 16 << 20

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithRemoteTimeout sets the per-request timeout.
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// WithRemoteHTTPClient replaces the underlying HTTP client.
func WithRemoteHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		if c != nil {
			r.client = c
		}
	}
}

// Remote reads views from a running birdboard server's JSON API.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a Remote for the server at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recent implements Backend.
func (r *Remote) Recent(ctx context.Context, region string, days int) (model.List[model.Observation], error) {
	return getJSON[model.List[model.Observation]](ctx, r, "/api/recent", windowQuery(region, days))
}

// Species implements Backend.
func (r *Remote) Species(ctx context.Context, region string, days int) (model.List[model.SpeciesAggregate], error) {
	return getJSON[model.List[model.SpeciesAggregate]](ctx, r, "/api/species", windowQuery(region, days))
}

// Hotspots implements Backend.
func (r *Remote) Hotspots(ctx context.Context, region string) (model.List[model.Hotspot], error) {
	return getJSON[model.List[model.Hotspot]](ctx, r, "/api/hotspots", windowQuery(region, 0))
}

// Stats implements Backend.
func (r *Remote) Stats(ctx context.Context, region string, days int) (model.StatsSummary, error) {
	return getJSON[model.StatsSummary](ctx, r, "/api/stats", windowQuery(region, days))
}

// Search implements Backend.
func (r *Remote) Search(ctx context.Context, region string, days int, query string) (model.List[model.Observation], error) {
	q := windowQuery(region, days)
	q.Set("q", query)
	return getJSON[model.List[model.Observation]](ctx, r, "/api/search", q)
}

// Gallery implements Backend.
func (r *Remote) Gallery(ctx context.Context, region string, days int) (model.List[model.PhotoObservation], error) {
	return getJSON[model.List[model.PhotoObservation]](ctx, r, "/api/gallery", windowQuery(region, days))
}

// Dashboard implements Backend. View errors reported by the server are
// restored as *RemoteError values so callers can inspect them.
func (r *Remote) Dashboard(ctx context.Context, params model.DashboardParams) (model.Dashboard, error) {
	q := windowQuery(params.Region, params.Days)
	if params.RecentDays != 0 {
		q.Set("recent_days", strconv.Itoa(params.RecentDays))
	}
	d, err := getJSON[model.Dashboard](ctx, r, "/api/dashboard", q)
	if err != nil {
		return d, err
	}
	first := restore(&d.Recent.Err, d.Recent.Error, nil)
	first = restore(&d.Species.Err, d.Species.Error, first)
	first = restore(&d.Hotspots.Err, d.Hotspots.Error, first)
	first = restore(&d.Stats.Err, d.Stats.Error, first)
	first = restore(&d.Gallery.Err, d.Gallery.Error, first)
	return d, first
}

func restore(dst *error, ve *model.ViewError, first error) error {
	if ve == nil {
		return first
	}
	*dst = &RemoteError{StatusCode: http.StatusOK, Code: ve.Code, Message: ve.Message}
	if first == nil {
		return *dst
	}
	return first
}

func windowQuery(region string, days int) url.Values {
	q := url.Values{}
	if region != "" {
		q.Set("region", region)
	}
	if days != 0 {
		q.Set("days", strconv.Itoa(days))
	}
	return q
}

func getJSON[T any](ctx context.Context, r *Remote, path string, query url.Values) (T, error) {
	var out T
	u := r.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, fmt.Errorf("%w: read body: %w", ErrRemote, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &envelope) != nil || envelope.Code == "" {
			envelope.Code = "http_error"
			envelope.Message = http.StatusText(resp.StatusCode)
		}
		return out, &RemoteError{StatusCode: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s: %w", ErrRemote, path, err)
	}
	return out, nil
}
