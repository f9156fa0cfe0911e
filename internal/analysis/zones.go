package analysis

import "paceload/internal/store"

// PaceSecPerKm converts a speed in m/s to a pace in seconds per kilometre.
func PaceSecPerKm(speed float64) float64 {
	return 1000 / speed
}

// InZone reports whether pace (sec/km) falls inside the bracket.
//
// A nil lower bound matches pace <= upper, a nil upper bound matches
// pace > lower, and a closed bracket matches lower < pace <= upper.
func InZone(z store.ZoneBracket, pace float64) bool {
	switch {
	case z.PaceMin == nil && z.PaceMax == nil:
		return true
	case z.PaceMin == nil:
		return pace <= *z.PaceMax
	case z.PaceMax == nil:
		return pace > *z.PaceMin
	default:
		return *z.PaceMin < pace && pace <= *z.PaceMax
	}
}

// ZoneFor returns the 1-based number of the first zone, in ascending zone
// order, that contains pace. It returns 0 when pace falls in a gap.
func ZoneFor(zones []store.ZoneBracket, pace float64) int {
	for _, z := range zones {
		if InZone(z, pace) {
			return z.ZoneNumber
		}
	}
	return 0
}
