// Package viewstate holds the latest applied dashboard per region, guarded
// by request generations so a slow refresh can never overwrite a newer one.
package viewstate

import (
	"context"

	"github.com/okian/birdboard/internal/domain/model"
)

// Store provides generation-guarded access to visible dashboards.
type Store interface {
	// Issue returns a new generation for region, greater than every
	// generation issued for it before.
	Issue(ctx context.Context, region string) uint64

	// Revoke withdraws gen when it is still the latest issued and was never
	// applied, making the previous generation current again. Reports
	// whether gen was withdrawn.
	Revoke(ctx context.Context, region string, gen uint64) bool

	// Apply makes d visible for region if gen is still the latest issued.
	// Returns ErrStale otherwise and leaves the visible dashboard untouched.
	Apply(ctx context.Context, region string, gen uint64, d model.Dashboard) error

	// Latest returns the visible dashboard for region.
	// Returns ErrNotFound when nothing was applied yet.
	Latest(ctx context.Context, region string) (model.Dashboard, error)

	// Current returns the latest generation issued for region, 0 if none.
	Current(ctx context.Context, region string) uint64
}
