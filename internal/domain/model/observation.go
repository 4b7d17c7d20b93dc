// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// obsTimeLayouts are tried in order when parsing ObsDt. The API returns
// local wall-clock time without a zone; everything is read as UTC so that
// comparisons only depend on the wall clock.
var obsTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Observation is a single species sighting as returned by the observation API.
type Observation struct {
	SpeciesCode      string   `json:"speciesCode"`
	ComName          string   `json:"comName"`
	SciName          string   `json:"sciName"`
	LocID            string   `json:"locId,omitempty"`
	LocName          string   `json:"locName,omitempty"`
	ObsDt            string   `json:"obsDt"`
	HowMany          *int     `json:"howMany,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	SubID            string   `json:"subId"`
	Subnational1Name string   `json:"subnational1Name,omitempty"`
}

// ObservedAt parses ObsDt. Unparseable values yield the zero time, which
// sorts before every real observation.
func (o Observation) ObservedAt() time.Time {
	t, _ := ParseObsTime(o.ObsDt)
	return t
}

// ParseObsTime parses the timestamp formats the observation API emits.
func ParseObsTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range obsTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
