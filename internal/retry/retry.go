// Package retry wraps fallible operations with bounded exponential-backoff
// retry. Only operations the caller explicitly marks transient should go
// through here; validation failures must be wrapped with Unrecoverable (or
// never passed in) so they surface immediately.
package retry

import (
	"context"
	"errors"
	"time"
)

// Options controls retry behavior.
type Options struct {
	MaxRetries  int           // total attempts, not additional retries
	Delay       time.Duration // base delay between attempts
	Exponential bool          // delay * 2^(attempt-1) when true, constant otherwise
}

// DefaultOptions matches the pipeline-wide defaults for network calls.
var DefaultOptions = Options{MaxRetries: 3, Delay: time.Second, Exponential: true}

// unrecoverableError marks an error that must not be retried.
type unrecoverableError struct {
	err error
}

func (u *unrecoverableError) Error() string { return u.err.Error() }
func (u *unrecoverableError) Unwrap() error { return u.err }

// Unrecoverable marks err so Do propagates it without further attempts.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{err: err}
}

// delayHinter is implemented by errors carrying a server-specified wait,
// e.g. a vendor 429 with a Retry-After header.
type delayHinter interface {
	RetryAfter() time.Duration
}

// Do invokes op up to opts.MaxRetries times, sleeping between attempts.
// A server-specified Retry-After on the returned error overrides the
// computed delay. The final error is propagated unwrapped.
func Do(ctx context.Context, op func() error, opts Options) error {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	var err error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		var unrecoverable *unrecoverableError
		if errors.As(err, &unrecoverable) {
			return unrecoverable.err
		}

		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.Delay
		if opts.Exponential {
			delay = opts.Delay << (attempt - 1)
		}
		var hinter delayHinter
		if errors.As(err, &hinter) {
			if after := hinter.RetryAfter(); after > 0 {
				delay = after
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
