package toolclient

import (
	"context"
	"errors"
	"time"
)

// permanentError marks a failure that must not be retried, such as a
// rejected credential pair. do unwraps it before returning so callers
// still match the underlying sentinel.
type permanentError struct{ err error }

func permanent(err error) error { return permanentError{err: err} }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// retryPolicy retries transient transport failures with linear backoff.
// Permanent errors abort immediately; application-level failures (non-2xx
// with a decoded body) are not retried here, only the transport layer is.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt+1)):
		}
	}
	return err
}
