package analysis

import (
	"math"
	"testing"
)

func TestClassifySamples(t *testing.T) {
	t.Run("240 s/km is mid under v1 and slow under v2", func(t *testing.T) {
		speeds := repeat(speedFor(240), 600)

		v1 := ClassifySamples(speeds, v1Zones(), DefaultMinSpeed)
		if v1.Seconds[1] != 600 {
			t.Errorf("v1 zone 2 seconds = %d, want 600", v1.Seconds[1])
		}
		if math.Abs(v1.ZoneMinutes[1]-10) > 1e-9 {
			t.Errorf("v1 zone 2 minutes = %v, want 10", v1.ZoneMinutes[1])
		}

		v2 := ClassifySamples(speeds, v2Zones(), DefaultMinSpeed)
		if v2.Seconds[2] != 600 {
			t.Errorf("v2 zone 3 seconds = %d, want 600", v2.Seconds[2])
		}
		if v2.Seconds[1] != 0 {
			t.Errorf("v2 zone 2 seconds = %d, want 0", v2.Seconds[1])
		}
	})

	t.Run("stationary and invalid samples are ignored", func(t *testing.T) {
		speeds := []float64{0, 0.05, 0.1, -1, math.NaN(), math.Inf(1), speedFor(200)}
		c := ClassifySamples(speeds, v1Zones(), DefaultMinSpeed)
		if c.Moving != 1 {
			t.Errorf("Moving = %d, want 1", c.Moving)
		}
		if c.Seconds[0] != 1 {
			t.Errorf("zone 1 seconds = %d, want 1", c.Seconds[0])
		}
	})

	t.Run("samples in a gap are not counted", func(t *testing.T) {
		zones := v1Zones()[:2] // nothing above 270 s/km
		speeds := append(repeat(speedFor(300), 30), repeat(speedFor(240), 30)...)
		c := ClassifySamples(speeds, zones, DefaultMinSpeed)
		if c.Unmatched != 30 {
			t.Errorf("Unmatched = %d, want 30", c.Unmatched)
		}
		if math.Abs(c.Total-0.5) > 1e-9 {
			t.Errorf("Total = %v, want 0.5", c.Total)
		}
	})

	t.Run("no samples", func(t *testing.T) {
		c := ClassifySamples(nil, v1Zones(), DefaultMinSpeed)
		if c.Moving != 0 || c.Total != 0 {
			t.Errorf("empty input classified as %+v", c)
		}
	})
}

func TestClassifySamplesConservation(t *testing.T) {
	var speeds []float64
	for i := 0; i < 3600; i++ {
		// Paces sweep 150-450 s/km with a few stops.
		if i%97 == 0 {
			speeds = append(speeds, 0)
			continue
		}
		speeds = append(speeds, speedFor(150+float64(i%300)))
	}

	c := ClassifySamples(speeds, v1Zones(), DefaultMinSpeed)

	var sum float64
	for _, m := range c.ZoneMinutes {
		sum += m
	}
	if math.Abs(sum-c.Total) > 1e-6 {
		t.Errorf("zone sum %v != total %v", sum, c.Total)
	}

	moving := float64(c.Moving) / 60
	if c.Total > moving+1e-9 {
		t.Errorf("total %v exceeds moving minutes %v", c.Total, moving)
	}
	if c.Unmatched != 0 {
		t.Errorf("contiguous zones left %d samples unmatched", c.Unmatched)
	}
}

func TestClassifySamplesDeterministic(t *testing.T) {
	speeds := []float64{3.2, 4.1, 4.9, 0, 3.7, 5.5}
	a := ClassifySamples(speeds, v1Zones(), DefaultMinSpeed)
	b := ClassifySamples(speeds, v1Zones(), DefaultMinSpeed)
	if a != b {
		t.Errorf("classification not deterministic: %+v vs %+v", a, b)
	}
}
