package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLatestVersionOnOrBeforeDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.resolver.ResolveVersion(ctx, athlete, day("2024-03-01"))
	require.NoError(t, err)
	require.Empty(t, got.Zones)
	require.Nil(t, got.EffectiveFrom)

	f.addZones(t, "2024-01-01", v1Zones())
	f.addZones(t, "2024-06-01", v2Zones())

	tests := []struct {
		date string
		want string
	}{
		{"2024-01-01", "2024-01-01"},
		{"2024-05-31", "2024-01-01"},
		{"2024-06-01", "2024-06-01"},
		{"2025-01-01", "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			v, err := f.resolver.ResolveVersion(ctx, athlete, day(tt.date))
			require.NoError(t, err)
			require.NotNil(t, v.EffectiveFrom)
			require.Equal(t, day(tt.want), *v.EffectiveFrom)
			require.Equal(t, int64(2), v.Generation)
		})
	}

	before, err := f.resolver.Resolve(ctx, athlete, day("2023-12-31"))
	require.NoError(t, err)
	require.Empty(t, before)
}

func TestResolverCacheSeesNewVersions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-06-01", v2Zones())

	zones, err := f.resolver.Resolve(ctx, athlete, day("2024-03-01"))
	require.NoError(t, err)
	require.Empty(t, zones)

	// Cached miss must not hide a backdated insert.
	f.addZones(t, "2024-01-01", v1Zones())
	zones, err = f.resolver.Resolve(ctx, athlete, day("2024-03-01"))
	require.NoError(t, err)
	require.Equal(t, v1Zones(), zones)
}

func TestResolverIsolatesAthletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addZones(t, "2024-01-01", v1Zones())

	zones, err := f.resolver.Resolve(ctx, athlete+1, day("2024-03-01"))
	require.NoError(t, err)
	require.Empty(t, zones)
}
