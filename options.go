package s3gate

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/s3gate/s3gate/internal/objstore"
	"github.com/s3gate/s3gate/internal/s3api"
)

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithDryRun plans every transfer and logs the derived destination keys
// without copying or verifying anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithWorkers bounds how many keys transfer concurrently. Values below 1
// are ignored. Defaults to the configured worker count.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		if workers >= 1 {
			e.workers = workers
		}
	}
}

// WithMaxAttempts bounds the per-key retry loop, overriding the
// configured value. Values below 1 are ignored.
func WithMaxAttempts(attempts int) Option {
	return func(e *Engine) {
		if attempts >= 1 {
			e.maxAttempts = attempts
		}
	}
}

// WithBackOff sets the factory for the per-key retry backoff. Each key
// gets a fresh backoff from the factory. Defaults to exponential backoff.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(e *Engine) {
		e.newBackOff = factory
	}
}

// WithClock sets the time source used to freeze batch attributes and the
// lookup window. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithClientFactory sets the factory building an S3 client per endpoint.
// Tests inject mock clients here.
func WithClientFactory(factory func(*objstore.Endpoint) (s3api.S3API, error)) Option {
	return func(e *Engine) {
		e.clientFactory = factory
	}
}
