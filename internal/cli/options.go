package cli

import (
	"io"

	"github.com/okian/birdboard/pkg/logger"
)

// Option configures the root command.
type Option func(*runner)

// WithBackend skips backend construction and serves every command from b.
func WithBackend(b Backend) Option {
	return func(r *runner) {
		r.backend = b
	}
}

// WithOutput redirects command output, mainly for tests.
func WithOutput(out, errOut io.Writer) Option {
	return func(r *runner) {
		r.out = out
		r.errOut = errOut
	}
}

// WithLogger sets the logger passed to a locally built backend.
func WithLogger(l logger.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}
