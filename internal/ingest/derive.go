package ingest

import (
	"math"

	"paceload/internal/store"
)

const earthRadiusMeters = 6371000.0

// haversine returns the great-circle distance in metres between two points.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// DeriveSpeed fills VelocitySmooth from consecutive samples, preferring the
// cumulative distance channel and falling back to GPS positions. It reports
// whether any speed could be derived. Points must be ordered by time offset.
func DeriveSpeed(points []store.StreamPoint) bool {
	derived := false
	for i := 1; i < len(points); i++ {
		prev, cur := &points[i-1], &points[i]
		dt := float64(cur.TimeOffset - prev.TimeOffset)
		if dt <= 0 {
			continue
		}

		var dist float64
		switch {
		case prev.Distance != nil && cur.Distance != nil:
			dist = *cur.Distance - *prev.Distance
		case prev.Lat != nil && prev.Lng != nil && cur.Lat != nil && cur.Lng != nil:
			dist = haversine(*prev.Lat, *prev.Lng, *cur.Lat, *cur.Lng)
		default:
			continue
		}
		if dist < 0 {
			continue
		}

		v := dist / dt
		cur.VelocitySmooth = &v
		derived = true
	}
	if derived && len(points) > 1 && points[0].VelocitySmooth == nil {
		v := 0.0
		points[0].VelocitySmooth = &v
	}
	return derived
}
