package action

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/iliamunaev/async-tracker/internal/pool"
)

type options struct {
	name    string
	timeout time.Duration
	logger  zerolog.Logger
	pool    *pool.Pool
}

// Option configures a Base.
type Option func(*options)

// WithTimeout fails the action with apperr.ErrTimedOut if it has not
// settled d after construction. Zero or negative disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithName sets a human-readable name used in logs and reports.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPool gates the action's work behind a concurrency pool.
func WithPool(p *pool.Pool) Option {
	return func(o *options) { o.pool = p }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
