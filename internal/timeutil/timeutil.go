// Package timeutil holds the timestamp parsing and formatting
// helpers shared by the aggregators, the HTTP layer and the CLI.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDateLayout renders dates the way an en-US browser's
// toLocaleDateString does.
const DefaultDateLayout = "1/2/2006"

// DefaultDateTimeLayout is used for transcript timestamps.
const DefaultDateTimeLayout = "Jan 2, 3:04 PM"

// DayLayout is the calendar-day bucket key.
const DayLayout = "2006-01-02"

// zonedLayouts carry their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// wallLayouts have no zone (Postgres "timestamp without time
// zone") and are read as wall-clock time in the viewer's zone.
var wallLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// Parse parses a backend timestamp, reading zone-less values
// as UTC. Use ParseIn when a viewer zone is known.
func Parse(ts string) (time.Time, error) {
	return ParseIn(ts, time.UTC)
}

// ParseIn parses a backend timestamp. Zone-less date-times are
// wall-clock time in loc; a bare date is midnight UTC.
func ParseIn(ts string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	for _, layout := range wallLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(DayLayout, ts); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ts)
}

// Format renders t as RFC3339Nano in UTC, or "" for the zero
// time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// LocalDay returns the calendar day of ts in loc, and false if
// ts does not parse.
func LocalDay(ts string, loc *time.Location) (string, bool) {
	t, err := ParseIn(ts, loc)
	if err != nil {
		return "", false
	}
	return t.In(loc).Format(DayLayout), true
}

// Relative renders how long ago t was, relative to now:
// "Just now", "{N}m ago", "{N}h ago", or the date in loc
// using layout once a full day has passed. Timestamps in the
// future count as "Just now".
func Relative(
	t, now time.Time, loc *time.Location, layout string,
) string {
	if layout == "" {
		layout = DefaultDateLayout
	}
	if loc == nil {
		loc = time.Local
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	default:
		return t.In(loc).Format(layout)
	}
}

// RelativeString is Relative for a raw backend timestamp.
// Unparseable input is returned unchanged.
func RelativeString(
	ts string, now time.Time, loc *time.Location, layout string,
) string {
	t, err := ParseIn(ts, loc)
	if err != nil {
		return ts
	}
	return Relative(t, now, loc, layout)
}

// LoadLocation resolves an IANA zone name. "" and "Local" map
// to time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
