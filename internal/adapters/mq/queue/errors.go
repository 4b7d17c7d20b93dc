package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("refresh queue full")
	ErrClosed = errors.New("refresh queue closed")
)
