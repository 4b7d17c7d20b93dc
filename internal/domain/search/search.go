// Package search filters observations by species name.
package search

import (
	"strings"

	"github.com/okian/birdboard/internal/domain/dedupe"
	"github.com/okian/birdboard/internal/domain/model"
)

// Search returns the first observation of every species whose common or
// scientific name contains query, ignoring case and surrounding spaces.
// Results keep input order.
func Search(observations []model.Observation, query string) (model.List[model.Observation], error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return model.List[model.Observation]{}, ErrEmptyQuery
	}

	matched := make([]model.Observation, 0, len(observations))
	for _, obs := range observations {
		if Matches(obs, q) {
			matched = append(matched, obs)
		}
	}
	return model.NewList(dedupe.FirstBy(matched, speciesCode)), nil
}

// Matches reports whether obs matches an already lower-cased query.
func Matches(obs model.Observation, lowered string) bool {
	return strings.Contains(strings.ToLower(obs.ComName), lowered) ||
		strings.Contains(strings.ToLower(obs.SciName), lowered)
}

func speciesCode(o model.Observation) string { return o.SpeciesCode }
