package ingest

import (
	"paceload/internal/store"
	"paceload/internal/strava"
)

// ConvertStreams turns Strava streams into per-second stream points.
func ConvertStreams(s *strava.Streams) []store.StreamPoint {
	if s.Len() == 0 {
		return nil
	}

	points := make([]store.StreamPoint, s.Len())
	for i, offset := range s.Time.Data {
		p := store.StreamPoint{TimeOffset: offset}

		if s.LatLng != nil && i < len(s.LatLng.Data) {
			lat, lng := s.LatLng.Data[i][0], s.LatLng.Data[i][1]
			p.Lat, p.Lng = &lat, &lng
		}
		p.Altitude = at(s.Altitude, i)
		p.VelocitySmooth = at(s.VelocitySmooth, i)
		p.Heartrate = at(s.Heartrate, i)
		p.Cadence = at(s.Cadence, i)
		p.Watts = at(s.Watts, i)
		p.Distance = at(s.Distance, i)

		points[i] = p
	}
	return points
}

func at[T any](s *strava.StreamData[T], i int) *T {
	if s == nil || i >= len(s.Data) {
		return nil
	}
	v := s.Data[i]
	return &v
}
