package analysis

import "math"

// MaxMonotony caps Foster monotony. Uniform non-zero daily load would
// otherwise divide by zero.
const MaxMonotony = 10.0

// minStdDev below which the daily loads are treated as uniform.
const minStdDev = 1e-9

// Load is a week's training load summary (Foster).
type Load struct {
	Load     float64 // sum of daily minutes
	Monotony float64
	Strain   float64
}

// Monotony computes Foster monotony: mean daily load divided by the
// population standard deviation, over all seven days (rest days are zero).
func Monotony(daily [7]float64) float64 {
	var sum float64
	for _, d := range daily {
		sum += d
	}
	mean := sum / 7
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, d := range daily {
		diff := d - mean
		variance += diff * diff
	}
	sd := math.Sqrt(variance / 7)
	if sd < minStdDev {
		return MaxMonotony
	}
	return math.Min(mean/sd, MaxMonotony)
}

// WeekLoad returns load, monotony and strain (load × monotony) for a week.
func WeekLoad(daily [7]float64) Load {
	var total float64
	for _, d := range daily {
		total += d
	}
	m := Monotony(daily)
	return Load{Load: total, Monotony: m, Strain: total * m}
}
