package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func classified(activityID int64, day string, generation int64, zone int, minutes float64) *ActivityZoneTime {
	eff := date("2024-01-01")
	z := &ActivityZoneTime{
		ActivityID:          activityID,
		AthleteID:           7,
		ActivityDate:        date(day),
		NumZones:            3,
		TotalMinutes:        minutes,
		Status:              StatusClassified,
		ConfigEffectiveFrom: &eff,
		ConfigGeneration:    generation,
		ComputedAt:          time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC),
	}
	z.ZoneMinutes[zone-1] = minutes
	return z
}

func TestUpsertActivityZoneTimeKeepsNewerGeneration(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)
	seedActivity(t, db, 1, 7, "2024-07-01")

	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(1, "2024-07-01", 2, 3, 30)))
	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(1, "2024-07-01", 1, 2, 30)))

	got, err := db.GetActivityZoneTime(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.ConfigGeneration)
	require.Equal(t, [MaxZones]float64{0, 0, 30}, got.ZoneMinutes)

	// Same or newer generations still replace the row.
	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(1, "2024-07-01", 2, 1, 25)))
	got, err = db.GetActivityZoneTime(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, [MaxZones]float64{25}, got.ZoneMinutes)

	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(1, "2024-07-01", 3, 2, 40)))
	got, err = db.GetActivityZoneTime(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.ConfigGeneration)
	require.Equal(t, [MaxZones]float64{0, 40}, got.ZoneMinutes)
}

func TestListStaleActivityZoneTimesIgnoresLaterVersions(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)
	seedActivity(t, db, 1, 7, "2024-03-01")
	seedActivity(t, db, 2, 7, "2024-07-01")

	_, err := db.InsertZoneVersion(ctx, 7, date("2024-01-01"), threeZones())
	require.NoError(t, err)
	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(1, "2024-03-01", 1, 2, 30)))
	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(2, "2024-07-01", 1, 2, 30)))

	stale, err := db.ListStaleActivityZoneTimes(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stale)

	// A future version covers neither activity.
	_, err = db.InsertZoneVersion(ctx, 7, date("2025-01-01"), threeZones())
	require.NoError(t, err)
	stale, err = db.ListStaleActivityZoneTimes(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stale)

	// A backdated version covers only the July activity.
	_, err = db.InsertZoneVersion(ctx, 7, date("2024-06-01"), threeZones())
	require.NoError(t, err)
	stale, err = db.ListStaleActivityZoneTimes(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, int64(2), stale[0].ActivityID)

	require.NoError(t, db.UpsertActivityZoneTime(ctx, classified(2, "2024-07-01", 3, 3, 30)))
	stale, err = db.ListStaleActivityZoneTimes(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, stale)

	stale, err = db.ListStaleActivityZoneTimes(ctx, 8)
	require.NoError(t, err)
	require.Empty(t, stale)
}
