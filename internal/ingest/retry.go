package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"paceload/internal/strava"
)

// RetryPolicy bounds the retries of a single external call.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries three times starting at half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 10 * time.Second}
}

// Retry runs op until it succeeds, returns a permanent error, the context is
// done, or the retry budget is spent. Not-found responses and non-temporary
// API errors are not retried.
func Retry(ctx context.Context, p RetryPolicy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func retryable(err error) bool {
	if errors.Is(err, strava.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *strava.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var decodeErr *DecodeError
	return !errors.As(err, &decodeErr)
}
