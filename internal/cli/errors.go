package cli

import (
	"errors"
	"fmt"
)

// Sentinel kinds for CLI errors.
var (
	ErrRemote     = errors.New("birdboard server error")
	ErrBadFlag    = errors.New("invalid flag value")
	ErrViewFailed = errors.New("one or more views failed")
)

// RemoteError is a non-2xx answer from a birdboard server, carrying the
// server's error envelope.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error { return ErrRemote }
