// Package timeline normalizes zoned timestamps onto the canonical UTC
// timeline and derives the calendar dates an interval occupies.
package timeline

import (
	"fmt"
	"time"
)

// Date is a calendar date on the UTC timeline. It is the canonical bucket
// key for grouping events: two instants share a Date exactly when they fall
// inside the same UTC day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the UTC calendar date containing the instant t.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// ParseDate parses a date in ISO-8601 form (2006-01-02).
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return Date{}, fmt.Errorf("timeline: invalid date %q: %w", value, err)
	}
	return DateOf(t), nil
}

// String renders the date in ISO-8601 form (2006-01-02).
func (d Date) String() string {
	return d.Start().Format(time.DateOnly)
}

// Start returns the instant at which the date begins (midnight UTC).
func (d Date) Start() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar date.
func (d Date) Next() Date {
	return DateOf(d.Start().AddDate(0, 0, 1))
}

// After reports whether d falls after other.
func (d Date) After(other Date) bool {
	return d.Start().After(other.Start())
}

// Before reports whether d falls before other.
func (d Date) Before(other Date) bool {
	return d.Start().Before(other.Start())
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// NormalizeUTC converts a zoned timestamp to UTC and truncates it to whole
// seconds. Second granularity is the timeline's contract: every storage
// backend persists the same instant it was handed, so an overlap decision
// can never differ between a backend that keeps nanoseconds and one that
// stores second-resolution text. The authored zone is discarded; callers
// that need it for display must capture it before normalizing.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// DatesTouched returns every UTC calendar date the half-open interval
// [startUTC, endUTC) occupies, in ascending order.
//
// Day-boundary rule: a date is touched only when the interval overlaps the
// date's own [00:00, 24:00) window with non-zero measure. An interval ending
// exactly at midnight therefore does not touch the day that begins at that
// midnight. An empty or inverted interval touches no dates.
func DatesTouched(startUTC, endUTC time.Time) []Date {
	start := NormalizeUTC(startUTC)
	end := NormalizeUTC(endUTC)
	if !start.Before(end) {
		return nil
	}

	first := DateOf(start)
	last := DateOf(end)
	if end.Equal(last.Start()) {
		// The interval only brushes the boundary of its final date.
		last = DateOf(end.Add(-time.Nanosecond))
	}

	dates := make([]Date, 0, 1)
	for d := first; !d.After(last); d = d.Next() {
		dates = append(dates, d)
	}
	return dates
}
