package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"paceload/internal/store"
)

func TestClassifyUsesVersionInForceOnActivityDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())
	f.addZones(t, "2024-06-01", v2Zones())

	f.seedRun(t, 1, "2024-03-01", 240, 30)
	f.seedRun(t, 2, "2024-07-01", 240, 30)

	march, err := f.engine.Classify(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, store.StatusClassified, march.Status)
	require.Equal(t, 3, march.NumZones)
	require.InDelta(t, 30, march.ZoneMinutes[1], 1e-9)
	require.InDelta(t, 30, march.TotalMinutes, 1e-9)
	require.Equal(t, day("2024-01-01"), *march.ConfigEffectiveFrom)

	july, err := f.engine.Classify(ctx, 2)
	require.NoError(t, err)
	require.InDelta(t, 0, july.ZoneMinutes[1], 1e-9)
	require.InDelta(t, 30, july.ZoneMinutes[2], 1e-9)
	require.Equal(t, day("2024-06-01"), *july.ConfigEffectiveFrom)
}

func TestClassifyStatuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.seedRun(t, 1, "2024-03-01", 240, 10)
	row, err := f.engine.Classify(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, store.StatusNoZones, row.Status)
	require.Zero(t, row.TotalMinutes)

	f.addZones(t, "2024-01-01", v1Zones())

	f.seedActivity(t, 2, "2024-03-02", "Ride", 120, 10)
	row, err = f.engine.Classify(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, store.StatusNonRun, row.Status)
	require.Zero(t, row.TotalMinutes)

	// Samples below the moving threshold never count.
	f.seedRun(t, 3, "2024-03-03", 20000, 10)
	row, err = f.engine.Classify(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, store.StatusNoSamples, row.Status)
	require.Equal(t, 3, row.NumZones)

	// Activities before the first version have no zones.
	f.seedRun(t, 4, "2023-12-31", 240, 10)
	row, err = f.engine.Classify(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, store.StatusNoZones, row.Status)
	require.Nil(t, row.ConfigEffectiveFrom)
}

func TestClassifyMissingActivity(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Classify(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestClassifyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())
	f.seedRun(t, 1, "2024-03-01", 240, 30)

	first, err := f.engine.Process(ctx, 1)
	require.NoError(t, err)
	second, err := f.engine.Process(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, second)

	weeks, err := f.db.ListWeeklyZoneTimes(ctx, athlete, day("2024-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	require.Equal(t, 1, weeks[0].ActivityCount)
	require.InDelta(t, 30, weeks[0].TotalMinutes, 1e-9)
}

func TestMonWedFriWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())

	// Week of Monday 2024-03-04.
	f.seedRun(t, 1, "2024-03-04", 240, 30)
	f.seedRun(t, 2, "2024-03-06", 240, 30)
	f.seedRun(t, 3, "2024-03-08", 240, 30)
	for id := int64(1); id <= 3; id++ {
		_, err := f.engine.Process(ctx, id)
		require.NoError(t, err)
	}

	w, err := f.db.GetWeeklyZoneTime(ctx, athlete, day("2024-03-04"))
	require.NoError(t, err)
	require.Equal(t, 3, w.ActivityCount)
	require.InDelta(t, 90, w.TotalMinutes, 1e-9)
	require.InDelta(t, 90, w.ZoneMinutes[1], 1e-9)

	m, err := f.db.GetWeeklyMonotonyStrain(ctx, athlete, day("2024-03-04"))
	require.NoError(t, err)
	wantMonotony := math.Sqrt(3) / 2
	require.InDelta(t, 90, m.TotalLoadMinutes, 1e-9)
	require.InDelta(t, wantMonotony, m.TotalMonotony, 1e-9)
	require.InDelta(t, 90*wantMonotony, m.TotalStrain, 1e-9)
	require.Len(t, m.Zones, 3)
	require.InDelta(t, wantMonotony, m.Zones[1].Monotony, 1e-9)
	require.Zero(t, m.Zones[0].Monotony)
	require.Zero(t, m.Zones[0].Strain)
}

func TestUniformWeekHitsMonotonyCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())

	for i := 0; i < 7; i++ {
		id := int64(i + 1)
		f.seedRun(t, id, store.FormatDate(day("2024-03-04").AddDate(0, 0, i)), 240, 20)
		_, err := f.engine.Process(ctx, id)
		require.NoError(t, err)
	}

	m, err := f.db.GetWeeklyMonotonyStrain(ctx, athlete, day("2024-03-04"))
	require.NoError(t, err)
	require.InDelta(t, 10, m.TotalMonotony, 1e-9)
	require.InDelta(t, 1400, m.TotalStrain, 1e-9)
}

func TestRebuildMatchesIncremental(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())
	f.addZones(t, "2024-06-01", v2Zones())

	runs := []struct {
		date string
		pace float64
		min  int
	}{
		{"2024-05-27", 200, 20},
		{"2024-05-29", 240, 45},
		{"2024-06-01", 240, 30},
		{"2024-06-02", 300, 60},
		{"2024-06-05", 215, 25},
	}
	for i, r := range runs {
		f.seedRun(t, int64(i+1), r.date, r.pace, r.min)
		_, err := f.engine.Process(ctx, int64(i+1))
		require.NoError(t, err)
	}

	from, to := day("2024-01-01"), day("2024-12-31")
	incWeeks, err := f.db.ListWeeklyZoneTimes(ctx, athlete, from, to)
	require.NoError(t, err)
	incLoads, err := f.db.ListWeeklyMonotonyStrain(ctx, athlete, from, to)
	require.NoError(t, err)

	n, err := f.engine.Rebuild(ctx, athlete)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	weeks, err := f.db.ListWeeklyZoneTimes(ctx, athlete, from, to)
	require.NoError(t, err)
	loads, err := f.db.ListWeeklyMonotonyStrain(ctx, athlete, from, to)
	require.NoError(t, err)
	require.Equal(t, incWeeks, weeks)
	require.Equal(t, incLoads, loads)

	for _, w := range weeks {
		var sum float64
		for _, m := range w.ZoneMinutes {
			sum += m
		}
		require.InDelta(t, w.TotalMinutes, sum, 1e-6)
	}
}

func TestDeleteActivityRefreshesWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())
	f.seedRun(t, 1, "2024-03-04", 240, 30)
	_, err := f.engine.Process(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteActivity(ctx, 1))

	_, err = f.db.GetWeeklyZoneTime(ctx, athlete, day("2024-03-04"))
	require.ErrorIs(t, err, store.ErrWeekNotFound)
	_, err = f.db.GetWeeklyMonotonyStrain(ctx, athlete, day("2024-03-04"))
	require.ErrorIs(t, err, store.ErrWeekNotFound)
}

type recordingPublisher struct {
	mu    sync.Mutex
	weeks []*store.WeeklyMonotonyStrain
}

func (p *recordingPublisher) PublishWeekUpdated(ctx context.Context, week *store.WeeklyMonotonyStrain) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.weeks = append(p.weeks, week)
	return nil
}

func TestComputeWeekPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pub := &recordingPublisher{}
	f.engine = NewEngine(f.db, f.resolver, EngineOptions{Publisher: pub})
	f.addZones(t, "2024-01-01", v1Zones())
	f.seedRun(t, 1, "2024-03-06", 240, 30)

	_, err := f.engine.Process(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pub.weeks, 1)
	require.Equal(t, day("2024-03-04"), pub.weeks[0].WeekStart)

	// Empty weeks publish nothing.
	_, err = f.engine.ComputeWeek(ctx, athlete, day("2024-04-01"))
	require.NoError(t, err)
	require.Len(t, pub.weeks, 1)
}
