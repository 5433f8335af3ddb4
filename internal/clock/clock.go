// Package clock supplies wall-clock time and the calendar tokens derived
// from it.
//
// Star eligibility is decided per calendar day and rollover per calendar
// month, both in the clock's location. Timestamps are persisted in the
// JavaScript ISO layout so that records written by the browser app and by
// this module stay interchangeable.
package clock

import (
	"fmt"
	"time"
)

// TimestampLayout matches Date.prototype.toISOString: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Clock returns the current time. Implemented by System (production)
// and testutil.FakeClock (tests).
type Clock interface {
	Now() time.Time
}

// System is the real wall clock. A nil Location means time.Local.
type System struct {
	Location *time.Location
}

// Now returns the current time in the configured location.
func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// DayKey returns the calendar day of t in t's own location.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// MonthKey returns the "YYYY-MM" token of t in t's own location.
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// FormatTimestamp renders t as a UTC ISO timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO timestamp. Fractional seconds and any
// offset are accepted.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// EpochMillis returns t as milliseconds since the Unix epoch.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ValidMonth reports whether s is a well-formed "YYYY-MM" token.
func ValidMonth(s string) bool {
	_, err := time.Parse(monthLayout, s)
	return err == nil
}

// SameDay reports whether the stored timestamp falls on the same calendar
// day as now, evaluated in now's location. An empty or unparsable
// timestamp is never the same day.
func SameDay(stored string, now time.Time) bool {
	if stored == "" {
		return false
	}
	t, err := ParseTimestamp(stored)
	if err != nil {
		return false
	}
	return DayKey(t.In(now.Location())) == DayKey(now)
}
