package analysis

import (
	"math"
	"testing"
)

func TestMonotony(t *testing.T) {
	tests := []struct {
		name     string
		daily    [7]float64
		expected float64
		delta    float64
	}{
		{
			name:     "no load",
			daily:    [7]float64{},
			expected: 0,
		},
		{
			name:     "uniform load caps at max",
			daily:    [7]float64{30, 30, 30, 30, 30, 30, 30},
			expected: MaxMonotony,
		},
		{
			// mean = 90/7, population sd = sqrt(3*(30-m)^2 + 4*m^2)/7 -> mean/sd = sqrt(3)/2
			name:     "mon wed fri 30 minutes",
			daily:    [7]float64{30, 0, 30, 0, 30, 0, 0},
			expected: math.Sqrt(3) / 2,
			delta:    1e-7,
		},
		{
			name:     "single day",
			daily:    [7]float64{0, 0, 0, 60, 0, 0, 0},
			expected: 1 / math.Sqrt(6),
			delta:    1e-9,
		},
		{
			name:     "near uniform is capped",
			daily:    [7]float64{60, 60, 60, 60, 60, 60, 60.01},
			expected: MaxMonotony,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Monotony(tt.daily)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("Monotony(%v) = %v, want %v", tt.daily, got, tt.expected)
			}
		})
	}
}

func TestMonotonyBounds(t *testing.T) {
	weeks := [][7]float64{
		{1, 2, 3, 4, 5, 6, 7},
		{120, 0, 0, 0, 0, 0, 0},
		{45, 50, 0, 45, 60, 0, 90},
		{0.01, 0, 0, 0, 0, 0, 0.02},
	}
	for _, w := range weeks {
		m := Monotony(w)
		if m < 0 || m > MaxMonotony {
			t.Errorf("Monotony(%v) = %v, outside [0, %v]", w, m, MaxMonotony)
		}
	}
}

func TestWeekLoad(t *testing.T) {
	l := WeekLoad([7]float64{30, 0, 30, 0, 30, 0, 0})

	if l.Load != 90 {
		t.Errorf("Load = %v, want 90", l.Load)
	}
	if math.Abs(l.Monotony-0.8660254) > 1e-6 {
		t.Errorf("Monotony = %v, want 0.8660254", l.Monotony)
	}
	if math.Abs(l.Strain-77.94) > 0.01 {
		t.Errorf("Strain = %v, want ~77.94", l.Strain)
	}

	empty := WeekLoad([7]float64{})
	if empty.Load != 0 || empty.Monotony != 0 || empty.Strain != 0 {
		t.Errorf("WeekLoad(empty) = %+v, want zero", empty)
	}
}
