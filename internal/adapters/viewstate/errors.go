package viewstate

import "errors"

// Sentinel kinds for view state errors.
var (
	ErrStale    = errors.New("stale generation")
	ErrNotFound = errors.New("no dashboard applied")
)
