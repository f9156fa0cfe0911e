package analysis

import (
	"math"

	"paceload/internal/store"
)

// DefaultMinSpeed is the speed (m/s) at or below which a sample counts as stationary.
const DefaultMinSpeed = 0.1

// Classification is the per-zone time of one activity.
type Classification struct {
	Seconds     [store.MaxZones]int
	Moving      int // samples above the speed threshold
	Unmatched   int // moving samples that fell in a gap between zones
	ZoneMinutes [store.MaxZones]float64
	Total       float64 // minutes
}

// ClassifySamples assigns every per-second speed sample to a pace zone.
// Samples at or below minSpeed (or non-finite) are ignored. Each classified
// sample contributes one second to its zone. Zones must be ordered by zone
// number.
func ClassifySamples(speeds []float64, zones []store.ZoneBracket, minSpeed float64) Classification {
	var c Classification
	for _, v := range speeds {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= minSpeed {
			continue
		}
		c.Moving++

		n := ZoneFor(zones, PaceSecPerKm(v))
		if n < 1 || n > store.MaxZones {
			c.Unmatched++
			continue
		}
		c.Seconds[n-1]++
	}

	seconds := 0
	for i, s := range c.Seconds {
		c.ZoneMinutes[i] = float64(s) / 60
		seconds += s
	}
	// Summed from integer seconds so the total equals the zone sum exactly.
	c.Total = float64(seconds) / 60
	return c
}
