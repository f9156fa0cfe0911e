package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertZoneVersionAndResolve(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)

	res, err := db.InsertZoneVersion(ctx, 7, date("2024-01-01"), threeZones())
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Generation)
	require.False(t, res.Backdated)
	require.Nil(t, res.Job, "no activities means nothing to recompute")

	v2 := []ZoneBracket{
		{ZoneNumber: 1, PaceMax: floatPtr(200)},
		{ZoneNumber: 2, PaceMin: floatPtr(200), PaceMax: floatPtr(230)},
		{ZoneNumber: 3, PaceMin: floatPtr(230)},
	}
	res, err = db.InsertZoneVersion(ctx, 7, date("2024-06-01"), v2)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Generation)

	tests := []struct {
		asOf      string
		effective string
		zone1Max  float64
	}{
		{"2024-01-01", "2024-01-01", 210},
		{"2024-05-31", "2024-01-01", 210},
		{"2024-06-01", "2024-06-01", 200},
		{"2025-02-01", "2024-06-01", 200},
	}
	for _, tt := range tests {
		t.Run(tt.asOf, func(t *testing.T) {
			v, err := db.ResolveZones(ctx, 7, date(tt.asOf))
			require.NoError(t, err)
			require.Len(t, v.Zones, 3)
			require.Equal(t, date(tt.effective), v.EffectiveFrom)
			require.Equal(t, tt.zone1Max, *v.Zones[0].PaceMax)
			require.Nil(t, v.Zones[0].PaceMin)
			for i, z := range v.Zones {
				require.Equal(t, i+1, z.ZoneNumber)
			}
		})
	}

	before, err := db.ResolveZones(ctx, 7, date("2023-12-31"))
	require.NoError(t, err)
	require.Empty(t, before.Zones)

	other, err := db.ResolveZones(ctx, 8, date("2024-07-01"))
	require.NoError(t, err)
	require.Empty(t, other.Zones)

	versions, err := db.ListZoneVersions(ctx, 7)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, int64(1), versions[0].Generation)

	gen, err := db.ZoneGeneration(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), gen)
	gen, err = db.ZoneGeneration(ctx, 8)
	require.NoError(t, err)
	require.Zero(t, gen)
}

func TestInsertZoneVersionRejectsDuplicateDate(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)

	_, err := db.InsertZoneVersion(ctx, 7, date("2024-01-01"), threeZones())
	require.NoError(t, err)
	_, err = db.InsertZoneVersion(ctx, 7, date("2024-01-01"), threeZones()[:1])
	require.ErrorIs(t, err, ErrDuplicateVersion)

	// The rejected insert must not bump the generation or merge rows.
	gen, err := db.ZoneGeneration(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)
	v, err := db.ResolveZones(ctx, 7, date("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, v.Zones, 3)
}

func TestInsertZoneVersionEnqueuesJobForAffectedActivities(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)
	seedActivity(t, db, 1, 7, "2024-02-10")
	seedActivity(t, db, 2, 7, "2024-04-10")

	_, err := db.InsertZoneVersion(ctx, 7, date("2024-06-01"), threeZones())
	require.NoError(t, err)

	res, err := db.InsertZoneVersion(ctx, 7, date("2024-03-01"), threeZones())
	require.NoError(t, err)
	require.True(t, res.Backdated)
	require.NotNil(t, res.Job)
	require.Equal(t, date("2024-03-01"), res.Job.FromDate)
	require.Equal(t, res.Generation, res.Job.Generation)

	job, err := db.GetRecomputeJob(ctx, res.Job.ID)
	require.NoError(t, err)
	require.Equal(t, JobPending, job.Status)
	require.Equal(t, int64(7), job.AthleteID)
}
