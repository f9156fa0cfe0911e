package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"paceload/internal/store"
)

// DecodeError marks a payload that can never be decoded; retrying is pointless.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decoding FIT file: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// FIT invalid-value sentinels
const (
	invalidUint8  = 0xFF
	invalidUint16 = 0xFFFF
	invalidUint32 = 0xFFFFFFFF
	invalidSint32 = 0x7FFFFFFF

	semicircleToDegrees = 180.0 / (1 << 31)
)

// DecodeFIT extracts per-second samples from the record messages of a FIT
// activity file. Time offsets are seconds since the first record.
func DecodeFIT(data []byte) ([]store.StreamPoint, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty FIT data")}
	}

	dec := decoder.New(bytes.NewReader(data))

	var points []store.StreamPoint
	var start time.Time
	seen := make(map[int]bool)

	for dec.Next() {
		fit, err := dec.Decode()
		if err != nil {
			return nil, &DecodeError{Err: err}
		}

		for i := range fit.Messages {
			msg := &fit.Messages[i]
			if msg.Num != typedef.MesgNumRecord {
				continue
			}
			rec := mesgdef.NewRecord(msg)
			if rec.Timestamp.IsZero() {
				continue
			}
			if start.IsZero() {
				start = rec.Timestamp
			}
			offset := int(rec.Timestamp.Sub(start) / time.Second)
			if offset < 0 || seen[offset] {
				continue
			}
			seen[offset] = true
			points = append(points, recordPoint(rec, offset))
		}
	}

	if len(points) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("no record messages")}
	}
	return points, nil
}

func recordPoint(rec *mesgdef.Record, offset int) store.StreamPoint {
	p := store.StreamPoint{TimeOffset: offset}

	// Speeds are mm/s; enhanced speed supersedes speed when present.
	switch {
	case rec.EnhancedSpeed != invalidUint32:
		v := float64(rec.EnhancedSpeed) / 1000
		p.VelocitySmooth = &v
	case rec.Speed != invalidUint16:
		v := float64(rec.Speed) / 1000
		p.VelocitySmooth = &v
	}
	if rec.HeartRate != invalidUint8 {
		hr := int(rec.HeartRate)
		p.Heartrate = &hr
	}
	if rec.Power != invalidUint16 {
		w := int(rec.Power)
		p.Watts = &w
	}
	if rec.Cadence != invalidUint8 {
		c := int(rec.Cadence)
		p.Cadence = &c
	}
	if rec.Distance != invalidUint32 {
		d := float64(rec.Distance) / 100
		p.Distance = &d
	}
	if rec.Altitude != invalidUint16 {
		alt := float64(rec.Altitude)/5 - 500
		p.Altitude = &alt
	}
	if rec.PositionLat != invalidSint32 && rec.PositionLong != invalidSint32 {
		lat := float64(rec.PositionLat) * semicircleToDegrees
		lng := float64(rec.PositionLong) * semicircleToDegrees
		p.Lat, p.Lng = &lat, &lng
	}
	return p
}
