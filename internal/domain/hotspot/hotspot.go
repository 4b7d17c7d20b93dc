// Package hotspot ranks birding hotspots for the map view.
package hotspot

import (
	"sort"

	"github.com/okian/birdboard/internal/domain/model"
)

// Limit caps the ranked list.
const Limit = 30

// Rank orders hotspots by all-time species count, highest first, and keeps
// the top Limit that have usable coordinates. A missing count ranks as zero
// and equal counts keep input order. The input slice is not modified.
func Rank(hotspots []model.Hotspot) model.List[model.Hotspot] {
	sorted := make([]model.Hotspot, len(hotspots))
	copy(sorted, hotspots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SpeciesAllTime() > sorted[j].SpeciesAllTime()
	})

	out := make([]model.Hotspot, 0, min(len(sorted), Limit))
	for _, h := range sorted {
		if len(out) == Limit {
			break
		}
		if !h.HasCoordinates() {
			continue
		}
		out = append(out, h)
	}
	return model.NewList(out)
}
