// Package cli implements birdctl, a one-shot terminal client for the
// birdboard views. Views are computed in-process against the eBird API, or
// read from a running birdboard server when --server is set.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/birdboard/internal/adapters/ebird"
	app "github.com/okian/birdboard/internal/app"
	"github.com/okian/birdboard/internal/config"
	"github.com/okian/birdboard/internal/domain/model"
	"github.com/okian/birdboard/pkg/logger"
)

// Flag defaults.
const (
	defaultTimeout       = 30 * time.Second
	defaultWatchInterval = 300
	minWatchInterval     = 30
)

// Backend computes the views. *service.Service and *Remote implement it.
type Backend interface {
	Recent(ctx context.Context, region string, days int) (model.List[model.Observation], error)
	Species(ctx context.Context, region string, days int) (model.List[model.SpeciesAggregate], error)
	Hotspots(ctx context.Context, region string) (model.List[model.Hotspot], error)
	Stats(ctx context.Context, region string, days int) (model.StatsSummary, error)
	Search(ctx context.Context, region string, days int, query string) (model.List[model.Observation], error)
	Gallery(ctx context.Context, region string, days int) (model.List[model.PhotoObservation], error)
	Dashboard(ctx context.Context, params model.DashboardParams) (model.Dashboard, error)
}

// runner holds the flag values and the backend shared by all commands.
type runner struct {
	backend Backend
	out     io.Writer
	errOut  io.Writer
	logger  logger.Logger

	region   string
	days     int
	asJSON   bool
	timeout  time.Duration
	server   string
	verbose  bool
	now      func() time.Time
	sleepFor func(ctx context.Context, d time.Duration) bool
}

// NewRootCommand builds the birdctl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	r := &runner{
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   logger.Nop(),
		now:      time.Now,
		sleepFor: sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}

	root := &cobra.Command{
		Use:   "birdctl",
		Short: "Query eBird birding dashboards from the terminal",
		Long: `birdctl prints the birdboard views for a region: recent sightings,
species frequency, top hotspots, headline stats, species search and the
photo gallery. The eBird API key is read the same way the server reads it
(BIRDBOARD_API_KEY, EBIRD_API_KEY, BIRDBOARD_CONFIG or BIRDBOARD_ENV_FILE).`,
		SilenceUsage:      true,
		PersistentPreRunE: r.prepare,
	}
	root.SetOut(r.out)
	root.SetErr(r.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&r.region, "region", "r", "", "eBird region code, e.g. IL or US-NY (default from config)")
	pf.IntVarP(&r.days, "days", "d", 0, "Lookback window in days, 1-30 (default depends on the view)")
	pf.BoolVar(&r.asJSON, "json", false, "Print raw JSON instead of tables")
	pf.DurationVar(&r.timeout, "timeout", defaultTimeout, "Timeout for each command run")
	pf.StringVar(&r.server, "server", "", "Read views from a running birdboard server at this URL")
	pf.BoolVarP(&r.verbose, "verbose", "v", false, "Log upstream requests to stderr")

	root.AddCommand(
		r.recentCmd(),
		r.speciesCmd(),
		r.hotspotsCmd(),
		r.statsCmd(),
		r.searchCmd(),
		r.galleryCmd(),
		r.dashboardCmd(),
	)
	return root
}

// prepare validates the shared flags and builds the backend once.
func (r *runner) prepare(cmd *cobra.Command, _ []string) error {
	if r.days < 0 || r.days > ebird.MaxBackDays {
		return fmt.Errorf("%w: --days must be between 1 and %d", ErrBadFlag, ebird.MaxBackDays)
	}
	if r.timeout <= 0 {
		return fmt.Errorf("%w: --timeout must be positive", ErrBadFlag)
	}
	if r.verbose {
		r.logger = logger.NewWithWriter(r.errOut, "text", slog.LevelDebug)
	}
	if r.backend != nil {
		return nil
	}
	if r.server != "" {
		r.backend = NewRemote(r.server, WithRemoteTimeout(r.timeout))
		return nil
	}
	b, err := localBackend(cmd.Context(), r.logger)
	if err != nil {
		return err
	}
	r.backend = b
	return nil
}

// localBackend builds an unstarted service from the server configuration.
// Commands only compute views, so no refresh workers are needed.
func localBackend(ctx context.Context, log logger.Logger) (*app.Service, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	client := ebird.New(
		ebird.WithBaseURL(cfg.APIBaseURL),
		ebird.WithAPIKey(cfg.APIKey),
		ebird.WithTokenHeader(cfg.APITokenHeader),
		ebird.WithTimeout(cfg.RequestTimeout()),
		ebird.WithLogger(log.Named("ebird")),
	)
	return app.New(
		app.WithSource(client),
		app.WithLogger(log),
		app.WithPhotoMapping(cfg.PhotoMapping),
		app.WithDefaultRegion(cfg.DefaultRegion),
		app.WithRecentDays(cfg.RecentDays),
		app.WithSummaryDays(cfg.SummaryDays),
	), nil
}

// run executes fn under the command timeout and prints its result, either
// as JSON or through render.
func run[T any](cmd *cobra.Command, r *runner, fn func(ctx context.Context) (T, error), render func(io.Writer, T) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), r.timeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		return err
	}
	if r.asJSON {
		return writeJSON(r.out, v)
	}
	return render(r.out, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
