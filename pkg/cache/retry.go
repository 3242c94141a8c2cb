package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork marks failures caused by the network, such as a fetch that
// could not reach the git remote.
var ErrNetwork = errors.New("network error")

// RetryableError wraps an error to indicate it should trigger a retry.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff controls [RetryWithBackoff].
var Backoff = struct {
	Attempts int
	Delay    time.Duration
}{Attempts: 3, Delay: time.Second}

// RetryWithBackoff retries fn with exponential backoff, up to
// Backoff.Attempts calls. Only errors wrapped with Retryable trigger
// retries. When every attempt fails the last error is returned.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := Backoff.Delay
	var lastErr error

	for i := 0; i < Backoff.Attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < Backoff.Attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
