package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paceload/internal/store"
	"paceload/internal/strava"
)

type fakeExport struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeExport) GetActivityExport(ctx context.Context, activityID int64) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeStreams struct {
	streams *strava.Streams
	err     error
	calls   int
}

func (f *fakeStreams) GetActivityStreams(ctx context.Context, activityID int64) (*strava.Streams, error) {
	f.calls++
	return f.streams, f.err
}

func streamsOf(n int, speed float64, hr int) *strava.Streams {
	s := &strava.Streams{Time: &strava.StreamData[int]{}}
	for i := 0; i < n; i++ {
		s.Time.Data = append(s.Time.Data, i)
	}
	if speed > 0 {
		s.VelocitySmooth = &strava.StreamData[float64]{}
		for i := 0; i < n; i++ {
			s.VelocitySmooth.Data = append(s.VelocitySmooth.Data, speed)
		}
	}
	if hr > 0 {
		s.Heartrate = &strava.StreamData[int]{}
		for i := 0; i < n; i++ {
			s.Heartrate.Data = append(s.Heartrate.Data, hr)
		}
	}
	return s
}

func TestCascadePrefersFIT(t *testing.T) {
	start := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	export := &fakeExport{data: encodeFIT(t, start, []fitRecord{
		{offset: 0, speedMMS: 3000, heartRate: 140, power: 200},
		{offset: 1, speedMMS: 3000, heartRate: 141, power: 210},
	})}
	streams := &fakeStreams{streams: streamsOf(2, 2.5, 150)}

	res, err := NewCascade(export, streams, fastRetry(0), nil).Fetch(context.Background(), 42)
	require.NoError(t, err)

	require.Equal(t, store.SampleSources{Speed: store.SourceFIT, Heartrate: store.SourceFIT, Power: store.SourceFIT}, res.Sources)
	require.Equal(t, 0, streams.calls)
	require.Len(t, res.Points, 2)
	require.Equal(t, int64(42), res.Points[0].ActivityID)
	require.InDelta(t, 3.0, *res.Points[0].VelocitySmooth, 1e-9)
}

func TestCascadeFillsMissingMetricsFromStreams(t *testing.T) {
	start := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	export := &fakeExport{data: encodeFIT(t, start, []fitRecord{
		{offset: 0, heartRate: 140},
		{offset: 1, heartRate: 141},
	})}
	streams := &fakeStreams{streams: streamsOf(2, 2.5, 150)}

	res, err := NewCascade(export, streams, fastRetry(0), nil).Fetch(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, store.SourceStreams, res.Sources.Speed)
	require.Equal(t, store.SourceFIT, res.Sources.Heartrate)
	require.Equal(t, store.SourceNone, res.Sources.Power)
	require.InDelta(t, 2.5, *res.Points[1].VelocitySmooth, 1e-9)
	require.Equal(t, 141, *res.Points[1].Heartrate)
}

func TestCascadeFallsBackToStreams(t *testing.T) {
	export := &fakeExport{err: strava.ErrNotFound}
	streams := &fakeStreams{streams: streamsOf(3, 3.0, 0)}

	res, err := NewCascade(export, streams, fastRetry(2), nil).Fetch(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, 1, export.calls)
	require.Equal(t, store.SourceStreams, res.Sources.Speed)
	require.Equal(t, store.SourceNone, res.Sources.Heartrate)
	require.Len(t, res.Points, 3)
}

func TestCascadeDerivesSpeed(t *testing.T) {
	s := &strava.Streams{
		Time:     &strava.StreamData[int]{Data: []int{0, 1, 2}},
		Distance: &strava.StreamData[float64]{Data: []float64{0, 4, 8}},
	}

	res, err := NewCascade(nil, &fakeStreams{streams: s}, fastRetry(0), nil).Fetch(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, store.SourceDerived, res.Sources.Speed)
	require.InDelta(t, 4.0, *res.Points[2].VelocitySmooth, 1e-9)
}

func TestCascadeNoSources(t *testing.T) {
	export := &fakeExport{err: errors.New("boom")}
	streams := &fakeStreams{err: strava.ErrNotFound}

	res, err := NewCascade(export, streams, fastRetry(1), nil).Fetch(context.Background(), 1)
	require.NoError(t, err)

	require.Empty(t, res.Points)
	require.Equal(t, store.SampleSources{Speed: store.SourceNone, Heartrate: store.SourceNone, Power: store.SourceNone}, res.Sources)
	require.Equal(t, 2, export.calls)
}

func TestCascadeReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCascade(&fakeExport{err: context.Canceled}, nil, fastRetry(0), nil).Fetch(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}
