// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// None disables retrying.
var None = Config{}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.Code, e.Body)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do executes operation until it succeeds, returns a non-retryable error,
// the attempts run out or ctx is done. The returned error wraps the last
// failure.
func Do(ctx context.Context, cfg Config, operation func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			if attempt == 0 {
				return err
			}
			return fmt.Errorf("operation failed after %d attempts: %w", attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(cfg.BaseDelay, attempt)):
		}
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return base*time.Duration(1<<attempt) + rand.N(base)
}

// Retryable reports whether err is worth another attempt. Context errors,
// errors marked Permanent and 4xx responses other than 429 are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return HTTPStatusRetryable(status.Code)
	}
	return true
}

// HTTPStatusRetryable checks if an HTTP status code is retryable
func HTTPStatusRetryable(statusCode int) bool {
	// Retry on server errors (5xx) and rate limiting (429)
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
