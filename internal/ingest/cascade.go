package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paceload/internal/store"
	"paceload/internal/strava"
)

// ExportSource downloads an activity's original upload file.
type ExportSource interface {
	GetActivityExport(ctx context.Context, activityID int64) ([]byte, error)
}

// StreamSource fetches an activity's Strava streams.
type StreamSource interface {
	GetActivityStreams(ctx context.Context, activityID int64) (*strava.Streams, error)
}

// Result is the merged per-second samples of an activity and where each
// metric came from.
type Result struct {
	Points  []store.StreamPoint
	Sources store.SampleSources
}

// Cascade fetches samples from the best available source: the original FIT
// file, then the Strava streams API, then values derived from distance or
// position. Each metric is taken from the first source that has it.
type Cascade struct {
	export  ExportSource
	streams StreamSource
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewCascade creates a cascade. Either source may be nil to skip it.
func NewCascade(export ExportSource, streams StreamSource, retry RetryPolicy, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{export: export, streams: streams, retry: retry, logger: logger}
}

// Fetch gathers samples for the activity. Source failures are logged and the
// affected metrics stay empty; the only error returned is the context's.
func (c *Cascade) Fetch(ctx context.Context, activityID int64) (*Result, error) {
	logger := c.logger.With("activity_id", activityID)
	res := &Result{Sources: store.SampleSources{
		Speed:     store.SourceNone,
		Heartrate: store.SourceNone,
		Power:     store.SourceNone,
	}}

	if c.export != nil {
		points, err := c.fetchFIT(ctx, activityID)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err != nil {
			logger.Warn("FIT export unavailable", "error", err)
			fetchFailures.WithLabelValues(store.SourceFIT).Inc()
		} else {
			res.Points = points
			res.claim(store.SourceFIT)
		}
	}

	if c.streams != nil && res.missing() {
		points, err := c.fetchStreams(ctx, activityID)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err != nil {
			logger.Warn("streams unavailable", "error", err)
			fetchFailures.WithLabelValues(store.SourceStreams).Inc()
		} else {
			res.merge(points, store.SourceStreams)
		}
	}

	if res.Sources.Speed == store.SourceNone && DeriveSpeed(res.Points) {
		res.Sources.Speed = store.SourceDerived
	}

	for i := range res.Points {
		res.Points[i].ActivityID = activityID
	}

	metricSources.WithLabelValues("speed", res.Sources.Speed).Inc()
	metricSources.WithLabelValues("heartrate", res.Sources.Heartrate).Inc()
	metricSources.WithLabelValues("power", res.Sources.Power).Inc()
	logger.Debug("samples fetched",
		"points", len(res.Points),
		"speed_source", res.Sources.Speed,
		"heartrate_source", res.Sources.Heartrate,
		"power_source", res.Sources.Power,
	)
	return res, nil
}

func (c *Cascade) fetchFIT(ctx context.Context, activityID int64) ([]store.StreamPoint, error) {
	var points []store.StreamPoint
	err := Retry(ctx, c.retry, func() error {
		data, err := c.export.GetActivityExport(ctx, activityID)
		if err != nil {
			return err
		}
		points, err = DecodeFIT(data)
		return err
	})
	return points, err
}

func (c *Cascade) fetchStreams(ctx context.Context, activityID int64) ([]store.StreamPoint, error) {
	var points []store.StreamPoint
	err := Retry(ctx, c.retry, func() error {
		s, err := c.streams.GetActivityStreams(ctx, activityID)
		if err != nil {
			return err
		}
		points = ConvertStreams(s)
		if len(points) == 0 {
			return &DecodeError{Err: errors.New("empty streams")}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching streams: %w", err)
	}
	return points, nil
}

func (r *Result) missing() bool {
	return r.Sources.Speed == store.SourceNone ||
		r.Sources.Heartrate == store.SourceNone ||
		r.Sources.Power == store.SourceNone
}

// claim records source for every metric present in the current points.
func (r *Result) claim(source string) {
	for _, p := range r.Points {
		if p.VelocitySmooth != nil && r.Sources.Speed == store.SourceNone {
			r.Sources.Speed = source
		}
		if p.Heartrate != nil && r.Sources.Heartrate == store.SourceNone {
			r.Sources.Heartrate = source
		}
		if p.Watts != nil && r.Sources.Power == store.SourceNone {
			r.Sources.Power = source
		}
	}
}

// merge fills metrics still missing from points of a lower-priority source,
// matching samples by time offset. With no samples yet, points become the
// timeline.
func (r *Result) merge(points []store.StreamPoint, source string) {
	if len(r.Points) == 0 {
		r.Points = points
		r.claim(source)
		return
	}

	byOffset := make(map[int]*store.StreamPoint, len(points))
	for i := range points {
		byOffset[points[i].TimeOffset] = &points[i]
	}

	needSpeed := r.Sources.Speed == store.SourceNone
	needHR := r.Sources.Heartrate == store.SourceNone
	needPower := r.Sources.Power == store.SourceNone

	for i := range r.Points {
		p := &r.Points[i]
		o, ok := byOffset[p.TimeOffset]
		if !ok {
			continue
		}
		if needSpeed && o.VelocitySmooth != nil {
			p.VelocitySmooth = o.VelocitySmooth
			r.Sources.Speed = source
		}
		if needHR && o.Heartrate != nil {
			p.Heartrate = o.Heartrate
			r.Sources.Heartrate = source
		}
		if needPower && o.Watts != nil {
			p.Watts = o.Watts
			r.Sources.Power = source
		}
		if p.Distance == nil {
			p.Distance = o.Distance
		}
		if p.Lat == nil && p.Lng == nil {
			p.Lat, p.Lng = o.Lat, o.Lng
		}
	}
}
