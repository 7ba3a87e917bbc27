package models

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the period bucket width of a sales series.
type Granularity string

const (
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts "week" or "month" in any case.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
	return g, nil
}

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	return g == GranularityWeek || g == GranularityMonth
}

// Naive drops the location of t keeping its UTC wall clock.
func Naive(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}

// Truncate returns the start of the period containing t.
// Weeks start on Monday; months on the first calendar day.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = Naive(t)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case GranularityWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Add moves a period start n periods forward (or back for n < 0).
func (g Granularity) Add(start time.Time, n int) time.Time {
	switch g {
	case GranularityWeek:
		return start.AddDate(0, 0, 7*n)
	case GranularityMonth:
		return start.AddDate(0, n, 0)
	default:
		return start.AddDate(0, 0, n)
	}
}

// Next returns the start of the period after start.
func (g Granularity) Next(start time.Time) time.Time {
	return g.Add(start, 1)
}

// SeasonLength is the number of periods in one year.
func (g Granularity) SeasonLength() int {
	if g == GranularityWeek {
		return 52
	}
	return 12
}

// String implements fmt.Stringer.
func (g Granularity) String() string { return string(g) }
