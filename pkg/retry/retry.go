// Package retry re-runs operations that fail transiently, such as a database
// that is still starting up.
package retry

import (
	"context"
	"errors"
	"time"
)

// TransientError marks an error as worth another attempt.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so that [Do] retries it. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Do runs fn up to attempts times, doubling delay after each failure. Only
// errors wrapped with [Transient] are retried; anything else is returned at
// once. The last error is returned when every attempt fails, or ctx.Err()
// if ctx ends while waiting.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
			delay *= 2
		}
	}
	return lastErr
}

// IsTransient reports whether err was marked with [Transient].
func IsTransient(err error) bool {
	return errors.As(err, new(*TransientError))
}
