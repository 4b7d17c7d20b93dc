package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Hotspot is a named birding location with aggregate historical statistics.
type Hotspot struct {
	LocID             string   `json:"locId,omitempty"`
	Name              string   `json:"locName"`
	Lat               *float64 `json:"lat,omitempty"`
	Lng               *float64 `json:"lng,omitempty"`
	NumSpeciesAllTime *int     `json:"numSpeciesAllTime,omitempty"`
	LatestObsDt       string   `json:"latestObsDt,omitempty"`
}

// SpeciesAllTime is the ranking key; a missing count ranks as zero.
func (h Hotspot) SpeciesAllTime() int {
	if h.NumSpeciesAllTime == nil {
		return 0
	}
	return *h.NumSpeciesAllTime
}

// HasCoordinates reports whether both coordinates are present and usable
// for a map link.
func (h Hotspot) HasCoordinates() bool {
	if h.Lat == nil || h.Lng == nil {
		return false
	}
	lat, lng := *h.Lat, *h.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// UnmarshalJSON accepts "locName" or "name" for the display name and
// tolerates coordinates and counts sent as numeric strings. Values that are
// not numeric are treated as absent.
func (h *Hotspot) UnmarshalJSON(data []byte) error {
	var raw struct {
		LocID             string          `json:"locId"`
		LocName           string          `json:"locName"`
		Name              string          `json:"name"`
		Lat               json.RawMessage `json:"lat"`
		Lng               json.RawMessage `json:"lng"`
		NumSpeciesAllTime json.RawMessage `json:"numSpeciesAllTime"`
		LatestObsDt       string          `json:"latestObsDt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	h.LocID = raw.LocID
	h.Name = raw.LocName
	if h.Name == "" {
		h.Name = raw.Name
	}
	h.Lat = optionalNumber(raw.Lat)
	h.Lng = optionalNumber(raw.Lng)
	h.NumSpeciesAllTime = optionalCount(raw.NumSpeciesAllTime)
	h.LatestObsDt = raw.LatestObsDt
	return nil
}

// optionalCount is optionalNumber restricted to whole numbers that fit an
// int. Fractional or out of range counts are treated as absent.
func optionalCount(raw json.RawMessage) *int {
	n := optionalNumber(raw)
	if n == nil || *n != math.Trunc(*n) {
		return nil
	}
	if *n < float64(math.MinInt) || *n >= -float64(math.MinInt) {
		return nil
	}
	v := int(*n)
	return &v
}

// optionalNumber decodes a JSON number or numeric string. Anything else,
// including null and non-finite values, is nil.
func optionalNumber(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var f float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = v
	} else if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
