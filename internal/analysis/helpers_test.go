package analysis

import "paceload/internal/store"

func floatPtr(f float64) *float64 {
	return &f
}

// v1Zones: fast <= 210 s/km, mid 210-270, slow > 270.
func v1Zones() []store.ZoneBracket {
	return []store.ZoneBracket{
		{ZoneNumber: 1, PaceMax: floatPtr(210)},
		{ZoneNumber: 2, PaceMin: floatPtr(210), PaceMax: floatPtr(270)},
		{ZoneNumber: 3, PaceMin: floatPtr(270)},
	}
}

// v2Zones: fast <= 200 s/km, mid 200-230, slow > 230.
func v2Zones() []store.ZoneBracket {
	return []store.ZoneBracket{
		{ZoneNumber: 1, PaceMax: floatPtr(200)},
		{ZoneNumber: 2, PaceMin: floatPtr(200), PaceMax: floatPtr(230)},
		{ZoneNumber: 3, PaceMin: floatPtr(230)},
	}
}

// speedFor returns the speed in m/s that yields pace seconds per kilometre.
func speedFor(pace float64) float64 {
	return 1000 / pace
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
