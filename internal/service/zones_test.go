package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"paceload/internal/store"
)

func TestValidateZones(t *testing.T) {
	tests := []struct {
		name  string
		zones []store.ZoneBracket
		field string
	}{
		{"empty", nil, "zones"},
		{"gap", []store.ZoneBracket{{ZoneNumber: 1}, {ZoneNumber: 3}}, "zone_number"},
		{"duplicate", []store.ZoneBracket{{ZoneNumber: 1}, {ZoneNumber: 1}}, "zone_number"},
		{"starts at two", []store.ZoneBracket{{ZoneNumber: 2}}, "zone_number"},
		{"inverted", []store.ZoneBracket{{ZoneNumber: 1, PaceMin: floatPtr(300), PaceMax: floatPtr(200)}}, "zones"},
		{"negative", []store.ZoneBracket{{ZoneNumber: 1, PaceMax: floatPtr(-1)}}, "zones"},
		{"too many", make([]store.ZoneBracket, store.MaxZones+1), "zones"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateZones(tt.zones)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateZonesSortsByNumber(t *testing.T) {
	in := []store.ZoneBracket{
		{ZoneNumber: 2, PaceMin: floatPtr(210)},
		{ZoneNumber: 1, PaceMax: floatPtr(210)},
	}
	out, err := ValidateZones(in)
	require.NoError(t, err)
	require.Equal(t, 1, out[0].ZoneNumber)
	require.Equal(t, 2, out[1].ZoneNumber)
	require.Equal(t, 2, in[0].ZoneNumber, "input must not be reordered")
}

func TestInsertVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.addZones(t, "2024-06-01", v2Zones())
	require.Equal(t, int64(1), res.Generation)
	require.False(t, res.Backdated)
	require.Empty(t, res.JobID, "no activities to recompute")

	f.seedRun(t, 1, "2024-07-01", 240, 10)

	res = f.addZones(t, "2024-01-01", v1Zones())
	require.Equal(t, int64(2), res.Generation)
	require.True(t, res.Backdated)
	require.NotEmpty(t, res.JobID)

	job, err := f.db.GetRecomputeJob(ctx, res.JobID)
	require.NoError(t, err)
	require.Equal(t, day("2024-01-01"), job.FromDate)
	require.Equal(t, store.JobPending, job.Status)

	versions, err := f.zones.Versions(ctx, athlete)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, day("2024-01-01"), versions[0].EffectiveFrom)
}

func TestInsertVersionRejectsDuplicateDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())

	_, err := f.zones.InsertVersion(ctx, athlete, day("2024-01-01"), v2Zones())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "effective_from", ve.Field)

	gen, err := f.resolver.Generation(ctx, athlete)
	require.NoError(t, err)
	require.Equal(t, int64(1), gen, "rejected insert must not bump the generation")

	zones, err := f.resolver.Resolve(ctx, athlete, day("2024-01-01"))
	require.NoError(t, err)
	require.Equal(t, v1Zones(), zones)
}

func TestInsertVersionValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.zones.InsertVersion(context.Background(), 0, day("2024-01-01"), v1Zones())
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.zones.InsertVersion(context.Background(), athlete, day("2024-01-01"), []store.ZoneBracket{{ZoneNumber: 2}})
	require.ErrorIs(t, err, ErrValidation)
}
