// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Provide New(ctx) to build a Config with defaults.
//   - Loading layers defaults, an optional YAML file, an optional dotenv
//     file and BIRDBOARD_ environment variables, in that order.
//   - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIKey is the eBird credential. It may be empty; fetches then fail
	// with a configuration error.
	APIKey string `koanf:"api_key"`

	// APIBaseURL is the eBird API root.
	APIBaseURL string `koanf:"api_base_url"`

	// APITokenHeader names the header carrying APIKey.
	APITokenHeader string `koanf:"api_token_header"`

	// RequestTimeoutMS bounds each upstream request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// DefaultRegion is used when a request names no region.
	DefaultRegion string `koanf:"default_region"`

	// RecentDays and SummaryDays are the default lookbacks for the recent
	// view and for every other view.
	RecentDays  int `koanf:"recent_days"`
	SummaryDays int `koanf:"summary_days"`

	// RefreshQueueSize bounds pending background refreshes.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// RefreshWorkers sets the number of refresh workers.
	RefreshWorkers int `koanf:"refresh_workers"`

	// RefreshIntervalS refreshes the default region periodically; 0 disables.
	RefreshIntervalS int `koanf:"refresh_interval_s"`

	// PhotoMapping maps species codes to photo post URLs.
	PhotoMapping map[string]string `koanf:"photo_mapping"`

	// PhotoMappingFile is a YAML or JSON file with more mappings. Its
	// entries win over PhotoMapping.
	PhotoMappingFile string `koanf:"photo_mapping_file"`

	// MetricsEnabled turns upstream and view metrics on or off. HTTP,
	// refresh and system metrics are always recorded.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBucketsMS overrides the latency histogram buckets.
	MetricsBucketsMS []float64 `koanf:"metrics_buckets_ms"`

	// MetricsLabels are constant labels added to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MetricsIntervalS is how often the system and queue gauges update.
	MetricsIntervalS int `koanf:"metrics_interval_s"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		APIBaseURL:       "https://api.ebird.org/v2",
		APITokenHeader:   "X-eBirdApiToken",
		RequestTimeoutMS: 15_000,
		DefaultRegion:    "IL",
		RecentDays:       3,
		SummaryDays:      30,
		RefreshQueueSize: 64,
		RefreshWorkers:   2,
		RefreshIntervalS: 0,
		PhotoMapping:     map[string]string{},
		MetricsEnabled:   true,
		MetricsNamespace: "birdboard",
		MetricsSubsystem: "dashboard",
		MetricsLabels:    map[string]string{},
		MetricsIntervalS: 10,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RefreshInterval returns RefreshIntervalS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalS) * time.Second
}

// MetricsInterval returns MetricsIntervalS as a duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalS) * time.Second
}

// HasAPIKey reports whether an eBird credential is configured.
func (c *Config) HasAPIKey() bool { return c.APIKey != "" }
