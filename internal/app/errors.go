package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrBackpressure = errors.New("refresh queue full")
	ErrNotStarted   = errors.New("service not started")
	ErrNoSource     = errors.New("no observation source configured")
)
