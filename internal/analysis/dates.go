package analysis

import "time"

// WeekStart returns the Monday of the week containing t, at midnight UTC.
// Weeks run Monday through Sunday.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// WeekDay returns the 0-based index of t within its Monday-start week.
func WeekDay(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeeksBetween lists the week starts from the week of from through the week
// of to, inclusive.
func WeeksBetween(from, to time.Time) []time.Time {
	start, end := WeekStart(from), WeekStart(to)
	var weeks []time.Time
	for w := start; !w.After(end); w = w.AddDate(0, 0, 7) {
		weeks = append(weeks, w)
	}
	return weeks
}
