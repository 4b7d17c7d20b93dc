package metrics

import "errors"

// ErrInvalidOption reports a manager setting Prometheus cannot register.
var ErrInvalidOption = errors.New("invalid metrics option")
