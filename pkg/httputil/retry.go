package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// MaxRetryAfter caps the wait a Retry-After header can impose.
const MaxRetryAfter = time.Minute

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// CheckStatus returns nil for 2xx responses. 5xx and 429 responses are
// wrapped in RetryableError; other statuses are returned as a plain
// *StatusError.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := &StatusError{StatusCode: resp.StatusCode}
	if resp.Request != nil && resp.Request.URL != nil {
		err.URL = resp.Request.URL.String()
	}
	if s, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && s > 0 {
		err.RetryAfter = time.Duration(s) * time.Second
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &RetryableError{Err: err}
	}
	return err
}

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt, and a
// server's Retry-After, when longer, replaces it for that wait.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait(lastErr, delay)):
				delay *= 2
			}
		}
	}
	return lastErr
}

// wait returns the pause before the next attempt.
func wait(err error, delay time.Duration) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > delay {
		return min(se.RetryAfter, MaxRetryAfter)
	}
	return delay
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
