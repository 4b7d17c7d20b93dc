// Package gallery joins observations with the curated photo table.
package gallery

import (
	"github.com/okian/birdboard/internal/domain/dedupe"
	"github.com/okian/birdboard/internal/domain/model"
)

// Join returns one entry per mapped species, in observation order, using
// the first observation seen for each. Species without a photo are skipped,
// so an empty mapping always yields a no-data list.
func Join(observations []model.Observation, mapping model.PhotoMapping) model.List[model.PhotoObservation] {
	if len(mapping) == 0 {
		return model.NewList[model.PhotoObservation](nil)
	}

	included := dedupe.New(len(mapping))
	out := make([]model.PhotoObservation, 0, len(mapping))
	for _, obs := range observations {
		url, ok := mapping.Lookup(obs.SpeciesCode)
		if !ok || included.SeenAndRecord(obs.SpeciesCode) {
			continue
		}
		out = append(out, model.PhotoObservation{Observation: obs, PhotoURL: url})
	}
	return model.NewList(out)
}
