package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paceload/internal/store"
)

const athlete = int64(7)

func floatPtr(f float64) *float64 { return &f }

func day(s string) time.Time {
	d, err := store.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// v1Zones: fast <= 3:30/km, mid 3:30-4:30, slow > 4:30.
func v1Zones() []store.ZoneBracket {
	return []store.ZoneBracket{
		{ZoneNumber: 1, PaceMax: floatPtr(210)},
		{ZoneNumber: 2, PaceMin: floatPtr(210), PaceMax: floatPtr(270)},
		{ZoneNumber: 3, PaceMin: floatPtr(270)},
	}
}

// v2Zones: fast <= 3:20/km, mid 3:20-3:50, slow > 3:50.
func v2Zones() []store.ZoneBracket {
	return []store.ZoneBracket{
		{ZoneNumber: 1, PaceMax: floatPtr(200)},
		{ZoneNumber: 2, PaceMin: floatPtr(200), PaceMax: floatPtr(230)},
		{ZoneNumber: 3, PaceMin: floatPtr(230)},
	}
}

type fixture struct {
	db       *store.DB
	resolver *Resolver
	engine   *Engine
	zones    *ZoneService
	query    *QueryService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.NewTestDB(t)
	f := &fixture{db: db, now: time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)}
	f.resolver = NewResolver(db)
	f.engine = NewEngine(db, f.resolver, EngineOptions{Now: func() time.Time { return f.now }})
	f.zones = NewZoneService(db, nil)
	f.query = NewQueryService(db, f.resolver)
	return f
}

func (f *fixture) addZones(t *testing.T, effectiveFrom string, zones []store.ZoneBracket) *InsertResult {
	t.Helper()
	res, err := f.zones.InsertVersion(context.Background(), athlete, day(effectiveFrom), zones)
	require.NoError(t, err)
	return res
}

// seedRun stores a synced activity whose samples run at pace seconds per
// kilometre for the given number of minutes.
func (f *fixture) seedRun(t *testing.T, id int64, date string, pace float64, minutes int) {
	t.Helper()
	f.seedActivity(t, id, date, "Run", pace, minutes)
}

func (f *fixture) seedActivity(t *testing.T, id int64, date, typ string, pace float64, minutes int) {
	t.Helper()
	ctx := context.Background()
	start, err := time.Parse(time.RFC3339, date+"T07:00:00Z")
	require.NoError(t, err)

	require.NoError(t, f.db.UpsertActivity(ctx, &store.Activity{
		ID:             id,
		AthleteID:      athlete,
		Name:           fmt.Sprintf("%s %d", typ, id),
		Type:           typ,
		StartDate:      start,
		StartDateLocal: start,
		MovingTime:     minutes * 60,
		ElapsedTime:    minutes * 60,
	}))

	points := make([]store.StreamPoint, minutes*60)
	for i := range points {
		v := 1000 / pace
		points[i] = store.StreamPoint{ActivityID: id, TimeOffset: i, VelocitySmooth: &v}
	}
	require.NoError(t, f.db.SaveStreams(ctx, id, points))
	require.NoError(t, f.db.MarkStreamsSynced(ctx, id, store.SampleSources{
		Speed: store.SourceStreams, Heartrate: store.SourceNone, Power: store.SourceNone,
	}))
}
