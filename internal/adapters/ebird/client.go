// Package ebird fetches observations and hotspots from the eBird API.
package ebird

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/pkg/logger"
	"github.com/okian/birdboard/pkg/metrics"
)

// Defaults for a Client built without options.
const (
	DefaultBaseURL     = "https://api.ebird.org/v2"
	DefaultTokenHeader = "X-eBirdApiToken"
	DefaultTimeout     = 15 * time.Second

	// MaxBackDays is the longest lookback the recent endpoint accepts.
	MaxBackDays = 30
)

const (
	endpointRecent   = "recent_observations"
	endpointHotspots = "hotspots"

	maxBodyBytes  = 32 << 20
	snippetLength = 50
)

// Client talks to the eBird API. Identical requests that overlap in time
// share one round trip; nothing is cached once it completes.
type Client struct {
	baseURL     string
	apiKey      string
	tokenHeader string
	timeout     time.Duration
	http        *http.Client
	logger      logger.Logger
	flight      singleflight.Group
}

// New constructs a Client. A missing API key is not an error here; every
// fetch reports ErrConfiguration instead.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		tokenHeader: DefaultTokenHeader,
		timeout:     DefaultTimeout,
		http:        &http.Client{},
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

// RecentObservations returns observations reported in region over the last
// back days.
func (c *Client) RecentObservations(ctx context.Context, region string, back int) ([]model.Observation, error) {
	const op = "ebird.recent_observations"

	region = strings.TrimSpace(region)
	if err := c.precheck(op, endpointRecent, region); err != nil {
		return nil, err
	}
	if back < 1 || back > MaxBackDays {
		return nil, fmt.Errorf("%s: %w: back must be between 1 and %d, got %d", op, model.ErrInvalidInput, MaxBackDays, back)
	}

	q := url.Values{}
	q.Set("back", strconv.Itoa(back))
	q.Set("fmt", "json")
	u := c.baseURL + "/data/obs/" + url.PathEscape(region) + "/recent?" + q.Encode()

	var out []model.Observation
	if err := c.get(ctx, op, endpointRecent, u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Hotspots returns the hotspot reference list for region.
func (c *Client) Hotspots(ctx context.Context, region string) ([]model.Hotspot, error) {
	const op = "ebird.hotspots"

	region = strings.TrimSpace(region)
	if err := c.precheck(op, endpointHotspots, region); err != nil {
		return nil, err
	}

	u := c.baseURL + "/ref/hotspot/" + url.PathEscape(region) + "?fmt=json"

	var out []model.Hotspot
	if err := c.get(ctx, op, endpointHotspots, u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) precheck(op, endpoint, region string) error {
	if c.apiKey == "" {
		metrics.RecordUpstreamRequest(endpoint, metrics.OutcomeConfig, 0)
		return &Error{Op: op, Kind: ErrConfiguration}
	}
	if region == "" {
		return fmt.Errorf("%s: %w: region is required", op, model.ErrInvalidInput)
	}
	return nil
}

// get fetches u and decodes the JSON array into dst. Concurrent callers
// asking for the same URL share the body of a single request; each caller
// still stops waiting when its own context ends.
func (c *Client) get(ctx context.Context, op, endpoint, u string, dst any) error {
	ch := c.flight.DoChan(u, func() (any, error) {
		return c.fetch(ctx, op, endpoint, u)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.logger.Debug(ctx, "caller left before upstream answered",
			logger.String("op", op),
			logger.Error(ctx.Err()),
		)
		return &Error{Op: op, Err: ctx.Err()}
	}
	if res.Shared {
		metrics.RecordUpstreamShared(endpoint)
	}
	if res.Err != nil {
		return res.Err
	}

	body := res.Val.([]byte)
	if err := json.Unmarshal(body, dst); err != nil {
		return &Error{Op: op, Kind: ErrMalformedJSON, Detail: snippet(body), Err: err}
	}
	return nil
}

// fetch performs one GET. It detaches from the caller's cancellation so a
// caller leaving early does not fail the others waiting on the same flight;
// the client timeout bounds it.
func (c *Client) fetch(ctx context.Context, op, endpoint, u string) ([]byte, error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	body, outcome, err := c.do(reqCtx, op, u)
	elapsed := time.Since(start)
	metrics.RecordUpstreamRequest(endpoint, outcome, float64(elapsed.Milliseconds()))

	if err != nil {
		c.logger.Warn(ctx, "upstream request failed",
			logger.String("op", op),
			logger.String("outcome", outcome),
			logger.Duration("elapsed", elapsed),
			logger.Error(err),
		)
		return nil, err
	}
	c.logger.Debug(ctx, "upstream request",
		logger.String("op", op),
		logger.Int("bytes", len(body)),
		logger.Duration("elapsed", elapsed),
	)
	return body, nil
}

func (c *Client) do(ctx context.Context, op, u string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, metrics.OutcomeTransport, &Error{Op: op, Err: err}
	}
	req.Header.Set(c.tokenHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, metrics.OutcomeTransport, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, metrics.OutcomeUnauthorized, statusError(op, ErrUnauthorized, resp)
	case resp.StatusCode == http.StatusNotFound:
		return nil, metrics.OutcomeNotFound, statusError(op, ErrNotFound, resp)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, metrics.OutcomeAPIError, statusError(op, ErrAPI, resp)
	}

	if isTabular(resp.Header.Get("Content-Type")) {
		return nil, metrics.OutcomeFormat, &Error{Op: op, Kind: ErrTabular, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, metrics.OutcomeTransport, &Error{Op: op, Err: err}
	}
	if !json.Valid(body) {
		return nil, metrics.OutcomeFormat, &Error{Op: op, Kind: ErrMalformedJSON, StatusCode: resp.StatusCode, Detail: snippet(body)}
	}
	return body, metrics.OutcomeOK, nil
}

func statusError(op string, kind error, resp *http.Response) *Error {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return &Error{
		Op:         op,
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
	}
}

func isTabular(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt == "text/csv" || mt == "text/tab-separated-values"
}

// snippet returns the first characters of body for error messages.
func snippet(body []byte) string {
	s := strings.ToValidUTF8(string(bytes.TrimSpace(body)), "?")
	if utf8.RuneCountInString(s) <= snippetLength {
		return s
	}
	return string([]rune(s)[:snippetLength])
}
