package analysis

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"2024-03-04", "2024-03-04"}, // Monday
		{"2024-03-06", "2024-03-04"},
		{"2024-03-10", "2024-03-04"}, // Sunday
		{"2024-03-11", "2024-03-11"},
		{"2024-01-01", "2024-01-01"},
		{"2023-12-31", "2023-12-25"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			in, _ := time.Parse("2006-01-02", tt.in)
			got := WeekStart(in.Add(15 * time.Hour))
			if got.Format("2006-01-02") != tt.expected {
				t.Errorf("WeekStart(%s) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.expected)
			}
		})
	}
}

func TestWeekDay(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := WeekDay(monday.AddDate(0, 0, i)); got != i {
			t.Errorf("WeekDay(+%d) = %d, want %d", i, got, i)
		}
	}
}

func TestWeeksBetween(t *testing.T) {
	from := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	weeks := WeeksBetween(from, to)
	if len(weeks) != 3 {
		t.Fatalf("WeeksBetween returned %d weeks, want 3", len(weeks))
	}
	if weeks[0].Format("2006-01-02") != "2024-03-04" || weeks[2].Format("2006-01-02") != "2024-03-18" {
		t.Errorf("WeeksBetween = %v", weeks)
	}
	if len(WeeksBetween(to, from)) != 0 {
		t.Errorf("reversed range should be empty")
	}
}
