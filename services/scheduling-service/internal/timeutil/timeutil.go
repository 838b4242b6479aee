// Package timeutil converts between instants and civil time in IANA zones and answers
// interval questions. Every function is pure.
package timeutil

import (
	"strings"
	"time"
)

const DefaultZone = "UTC"

// LoadZone resolves an IANA identifier. Empty and "Local" are rejected so that results
// never depend on the host's zone.
func LoadZone(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}

func IsValidZone(name string) bool {
	_, ok := LoadZone(name)
	return ok
}

// ZoneOrUTC returns the named zone, or UTC when the name is empty or unknown.
func ZoneOrUTC(name string) *time.Location {
	if loc, ok := LoadZone(name); ok {
		return loc
	}
	return time.UTC
}

// SanitizeZone picks requested if valid, then fallback if valid, then UTC.
func SanitizeZone(requested, fallback string) string {
	if IsValidZone(requested) {
		return strings.TrimSpace(requested)
	}
	if IsValidZone(fallback) {
		return strings.TrimSpace(fallback)
	}
	return DefaultZone
}

func ToLocal(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// FromLocal interprets a wall-clock reading in loc. Readings inside a DST gap are moved
// forward the way time.Date does.
func FromLocal(year int, month time.Month, day, hour, min int, loc *time.Location) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

// StartOfDay is local midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay is the last representable instant of the local day containing t.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	start := StartOfDay(t, loc)
	next := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, loc)
	return next.Add(-time.Nanosecond)
}

// WeekBounds returns Monday 00:00 and Sunday end-of-day of the local week containing t.
func WeekBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	monday := time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, loc)
	sunday := time.Date(monday.Year(), monday.Month(), monday.Day()+6, 0, 0, 0, 0, loc)
	return monday, EndOfDay(sunday, loc)
}

// FormatISO renders t as ISO-8601 with the zone's offset, e.g. 2025-03-03T09:00:00-05:00.
func FormatISO(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

// Offset is the zone's UTC offset at instant t, e.g. "-05:00".
func Offset(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("-07:00")
}

// ClockMinutes is the local time of day in minutes since midnight.
func ClockMinutes(t time.Time, loc *time.Location) int {
	l := t.In(loc)
	return l.Hour()*60 + l.Minute()
}

func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	la, lb := a.In(loc), b.In(loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect. Back-to-back
// intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MinutesBetween counts whole minutes from a to b, truncated toward zero.
func MinutesBetween(a, b time.Time) int64 {
	return int64(b.Sub(a) / time.Minute)
}
