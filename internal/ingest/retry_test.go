package ingest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paceload/internal/strava"
)

func fastRetry(n int) RetryPolicy {
	return RetryPolicy{MaxRetries: n, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		calls++
		return &strava.APIError{StatusCode: http.StatusServiceUnavailable}
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", strava.ErrNotFound},
		{"bad request", &strava.APIError{StatusCode: http.StatusBadRequest}},
		{"decode", &DecodeError{Err: errors.New("bad header")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastRetry(5), func() error {
				calls++
				return tt.err
			})
			require.ErrorIs(t, err, tt.err)
			require.Equal(t, 1, calls)
		})
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry(5), func() error {
		return errors.New("timeout")
	})
	require.Error(t, err)
}
