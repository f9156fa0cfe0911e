// Package observability wires error reporting to Sentry.
package observability

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig selects the Sentry project and tags events with the
// deployment environment and release.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter sends errors to Sentry. A Reporter built without a DSN only logs.
type Reporter struct {
	enabled bool
	logger  *slog.Logger
}

// InitSentry initializes the Sentry client. An empty DSN disables reporting.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Debug("Sentry DSN not configured - error reporting disabled")
		return &Reporter{logger: logger}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}

	logger.Info("Sentry initialized", "environment", cfg.Environment)
	return &Reporter{enabled: true, logger: logger}, nil
}

// CaptureException reports err with the given tags.
func (r *Reporter) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if !r.enabled {
		r.logger.Debug("error not reported, Sentry disabled", "error", err)
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush waits up to timeout for queued events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.enabled {
		return true
	}
	return sentry.Flush(timeout)
}

// Recover reports a panic and re-panics.
func (r *Reporter) Recover() {
	if v := recover(); v != nil {
		err, ok := v.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", v)
		}
		r.CaptureException(err, map[string]string{"panic": "true"})
		r.Flush(2 * time.Second)
		panic(v)
	}
}
