package utils

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of the same calendar day as seen in t's
// own location.  All inventory dates are normalised through Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight timestamp.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// DateRange returns every calendar date in [start, end) in ascending order.
// An empty slice is returned when end is not after start.
func DateRange(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if !end.After(start) {
		return []time.Time{}
	}
	out := make([]time.Time, 0, int(end.Sub(start).Hours()/24))
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// FutureDates returns n consecutive dates starting at from (inclusive).
func FutureDates(from time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	from = Day(from)
	return DateRange(from, from.AddDate(0, 0, n))
}
