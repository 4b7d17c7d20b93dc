package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/birdboard/internal/domain/model"
)

func (r *runner) recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "Most recent sighting of each species",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, r, func(ctx context.Context) (model.List[model.Observation], error) {
				return r.backend.Recent(ctx, r.region, r.days)
			}, writeRecent)
		},
	}
}

func (r *runner) speciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "species",
		Short: "Most frequently observed species",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, r, func(ctx context.Context) (model.List[model.SpeciesAggregate], error) {
				return r.backend.Species(ctx, r.region, r.days)
			}, writeSpecies)
		},
	}
}

func (r *runner) hotspotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hotspots",
		Short: "Hotspots ranked by species seen all time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, r, func(ctx context.Context) (model.List[model.Hotspot], error) {
				return r.backend.Hotspots(ctx, r.region)
			}, writeHotspots)
		},
	}
}

func (r *runner) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Observation, species, checklist and hotspot totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, r, func(ctx context.Context) (model.StatsSummary, error) {
				return r.backend.Stats(ctx, r.region, r.days)
			}, writeStats)
		},
	}
}

func (r *runner) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find species by common or scientific name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := joinArgs(args)
			return run(cmd, r, func(ctx context.Context) (model.List[model.Observation], error) {
				return r.backend.Search(ctx, r.region, r.days, query)
			}, writeSearch)
		},
	}
}

func (r *runner) galleryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gallery",
		Short: "Observed species that have a photo post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, r, func(ctx context.Context) (model.List[model.PhotoObservation], error) {
				return r.backend.Gallery(ctx, r.region, r.days)
			}, writeGallery)
		},
	}
}

func (r *runner) dashboardCmd() *cobra.Command {
	var (
		recentDays int
		watch      bool
		interval   int
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Every view at once",
		Long: `dashboard computes all views concurrently. A view that fails is
reported in place and does not hide the others. With --watch the dashboard
is recomputed every --interval seconds until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := model.DashboardParams{Region: r.region, RecentDays: recentDays, Days: r.days}
			if !watch {
				return r.dashboardOnce(cmd, params)
			}
			return r.watchDashboard(cmd, params, interval)
		},
	}
	cmd.Flags().IntVar(&recentDays, "recent-days", 0, "Lookback for the recent view (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Recompute the dashboard periodically")
	cmd.Flags().IntVarP(&interval, "interval", "i", defaultWatchInterval, "Watch interval in seconds (minimum 30)")
	return cmd
}

// dashboardOnce prints one dashboard. Per-view failures are printed with
// the dashboard and reported through the error only when every view failed.
func (r *runner) dashboardOnce(cmd *cobra.Command, params model.DashboardParams) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), r.timeout)
	defer cancel()

	d, err := r.backend.Dashboard(ctx, params)
	if err != nil && d.GeneratedAt.IsZero() {
		return err
	}
	if r.asJSON {
		if werr := writeJSON(r.out, d); werr != nil {
			return werr
		}
	} else if werr := writeDashboard(r.out, d); werr != nil {
		return werr
	}
	if d.AllFailed() {
		return fmt.Errorf("%w: %w", ErrViewFailed, err)
	}
	return nil
}

func (r *runner) watchDashboard(cmd *cobra.Command, params model.DashboardParams, interval int) error {
	if interval < minWatchInterval {
		interval = minWatchInterval
	}
	every := time.Duration(interval) * time.Second
	cmd.PrintErrln(fmt.Sprintf("Watch mode activated. Updating every %d seconds. Press Ctrl+C to stop.", interval))

	for {
		if err := r.dashboardOnce(cmd, params); err != nil {
			cmd.PrintErrln(fmt.Errorf("update failed: %w", err))
		}
		cmd.PrintErrln("Last updated " + r.now().Format(dateLayout))
		if !r.sleepFor(cmd.Context(), every) {
			return nil
		}
	}
}
