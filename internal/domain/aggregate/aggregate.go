// Package aggregate turns raw observation lists into the species-level
// projections shown on the dashboard. Every function is pure: inputs are
// never mutated and results are rebuilt from scratch on each call.
package aggregate

import (
	"sort"
	"time"

	"github.com/okian/birdboard/internal/domain/dedupe"
	"github.com/okian/birdboard/internal/domain/model"
)

// Truncation limits, applied after the full sort.
const (
	RecentLimit  = 30
	SpeciesLimit = 50
)

// MostRecentPerSpecies keeps the latest observation of each species,
// newest first, capped at RecentLimit. A later observation replaces the
// current one only when strictly newer, so equal timestamps keep the one
// seen first.
func MostRecentPerSpecies(observations []model.Observation) model.List[model.Observation] {
	type latest struct {
		obs model.Observation
		at  time.Time
	}

	order := dedupe.New(len(observations))
	best := make(map[string]latest, len(observations))
	for _, obs := range observations {
		at := obs.ObservedAt()
		if !order.SeenAndRecord(obs.SpeciesCode) {
			best[obs.SpeciesCode] = latest{obs: obs, at: at}
			continue
		}
		if at.After(best[obs.SpeciesCode].at) {
			best[obs.SpeciesCode] = latest{obs: obs, at: at}
		}
	}

	picked := make([]latest, 0, order.Size())
	for _, code := range order.Keys() {
		picked = append(picked, best[code])
	}
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].at.After(picked[j].at)
	})
	if len(picked) > RecentLimit {
		picked = picked[:RecentLimit]
	}

	out := make([]model.Observation, len(picked))
	for i, p := range picked {
		out[i] = p.obs
	}
	return model.NewList(out)
}

// CountSpecies counts observations per species, most frequent first. Names
// come from the first observation seen for each code; equal counts keep
// first-seen order. The result is not truncated, so the counts always sum
// to len(observations).
func CountSpecies(observations []model.Observation) []model.SpeciesAggregate {
	order := dedupe.New(len(observations))
	byCode := make(map[string]*model.SpeciesAggregate, len(observations))
	for _, obs := range observations {
		if !order.SeenAndRecord(obs.SpeciesCode) {
			byCode[obs.SpeciesCode] = &model.SpeciesAggregate{
				SpeciesCode: obs.SpeciesCode,
				ComName:     obs.ComName,
				SciName:     obs.SciName,
			}
		}
		byCode[obs.SpeciesCode].Count++
	}

	out := make([]model.SpeciesAggregate, 0, order.Size())
	for _, code := range order.Keys() {
		out = append(out, *byCode[code])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// SpeciesFrequency is CountSpecies capped at SpeciesLimit.
func SpeciesFrequency(observations []model.Observation) model.List[model.SpeciesAggregate] {
	counts := CountSpecies(observations)
	if len(counts) > SpeciesLimit {
		counts = counts[:SpeciesLimit]
	}
	return model.NewList(counts)
}

// Summarize computes the headline totals for a window.
func Summarize(observations []model.Observation, hotspots []model.Hotspot) model.StatsSummary {
	return model.StatsSummary{
		TotalObservations: len(observations),
		TotalSpecies:      dedupe.CountDistinct(observations, speciesCode),
		TotalChecklists:   dedupe.CountDistinct(observations, checklistID),
		TotalHotspots:     len(hotspots),
	}
}

func speciesCode(o model.Observation) string { return o.SpeciesCode }

func checklistID(o model.Observation) string { return o.SubID }
