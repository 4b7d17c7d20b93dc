package ebird

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Match them with errors.Is; use errors.As with *Error for
// the HTTP status and detail.
var (
	ErrConfiguration = errors.New("eBird API key not configured")
	ErrUnauthorized  = errors.New("invalid API key")
	ErrNotFound      = errors.New("data not found for this region")
	ErrAPI           = errors.New("API error")
	ErrFormat        = errors.New("unexpected response format")
	ErrTabular       = fmt.Errorf("%w: tabular response", ErrFormat)
	ErrMalformedJSON = fmt.Errorf("%w: malformed JSON", ErrFormat)
)

// Error describes a failed upstream call.
type Error struct {
	Op         string
	Kind       error
	StatusCode int
	Status     string
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.message())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Message is the human readable text shown to dashboard users.
func (e *Error) Message() string { return e.message() }

func (e *Error) message() string {
	switch {
	case errors.Is(e.Kind, ErrConfiguration):
		return "eBird API key not configured"
	case errors.Is(e.Kind, ErrUnauthorized):
		return "Invalid API key. Please check your eBird API key."
	case errors.Is(e.Kind, ErrNotFound):
		return "Data not found for this region."
	case errors.Is(e.Kind, ErrAPI):
		return fmt.Sprintf("API error: %d %s", e.StatusCode, e.Status)
	case errors.Is(e.Kind, ErrTabular):
		return "API returned CSV format. Please ensure fmt=json parameter is included."
	case errors.Is(e.Kind, ErrMalformedJSON):
		return fmt.Sprintf("Failed to parse JSON response. Response starts with: %s...", e.Detail)
	case e.Kind != nil:
		return e.Kind.Error()
	default:
		return "request failed"
	}
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
