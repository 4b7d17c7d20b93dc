package model

// Status tells a renderer whether a view has content.
type Status string

// View statuses. StatusNoData is a valid empty result, not a failure.
const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no_data"
)

// List is a view projection: an ordered slice of items plus its status.
type List[T any] struct {
	Status Status `json:"status"`
	Items  []T    `json:"items"`
}

// NewList wraps items, marking an empty slice as StatusNoData. Items is
// never nil so it always encodes as a JSON array.
func NewList[T any](items []T) List[T] {
	if len(items) == 0 {
		return List[T]{Status: StatusNoData, Items: []T{}}
	}
	return List[T]{Status: StatusOK, Items: items}
}

// Empty reports whether the list holds no items.
func (l List[T]) Empty() bool { return len(l.Items) == 0 }

// Len returns the number of items.
func (l List[T]) Len() int { return len(l.Items) }

// SpeciesAggregate counts observations sharing one species code.
type SpeciesAggregate struct {
	SpeciesCode string `json:"speciesCode"`
	ComName     string `json:"comName"`
	SciName     string `json:"sciName"`
	Count       int    `json:"count"`
}

// StatsSummary is the headline numbers for a region and window.
type StatsSummary struct {
	TotalObservations int `json:"totalObservations"`
	TotalSpecies      int `json:"totalSpecies"`
	TotalChecklists   int `json:"totalChecklists"`
	TotalHotspots     int `json:"totalHotspots"`
}

// PhotoMapping maps a species code to the URL of a photo post.
type PhotoMapping map[string]string

// Lookup returns the photo URL for code, ignoring blank entries.
func (m PhotoMapping) Lookup(code string) (string, bool) {
	url, ok := m[code]
	if !ok || url == "" {
		return "", false
	}
	return url, true
}

// PhotoObservation is an observation joined with its photo post.
type PhotoObservation struct {
	Observation
	PhotoURL string `json:"photoUrl"`
}
