// Package dates builds the start/due/all-day fields of task payloads.
package dates

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/harrisonrobin/tickmirror/pkg/model"
)

// QueryLayout is the timestamp layout of the completed-tasks query parameters.
const QueryLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

// Parse reads a timestamp in any of the forms the service sends.
func Parse(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", s, model.ErrInvalidArgument)
}

// Range holds the date fields merged into a task payload.
type Range struct {
	StartDate string `json:"startDate"`
	DueDate   string `json:"dueDate,omitempty"`
	AllDay    bool   `json:"allDay"`
	TimeZone  string `json:"timeZone,omitempty"`
}

// Build computes the date fields for start and an optional due. The wall clock of both
// values is read in tz, or in sessionTZ when tz is empty. A range made of two midnights is
// all-day and its due date is pushed one day later because the service treats it as
// exclusive.
func Build(start time.Time, due *time.Time, tz, sessionTZ string) (Range, error) {
	var r Range
	zone := sessionTZ
	if tz != "" {
		r.TimeZone = tz
		zone = tz
	}
	loc, err := Location(zone)
	if err != nil {
		return Range{}, err
	}

	r.StartDate = Format(start, loc)
	if due == nil {
		r.AllDay = IsMidnight(start)
		return r, nil
	}

	if !IsMidnight(start) || !IsMidnight(*due) {
		r.DueDate = Format(*due, loc)
		r.AllDay = false
		return r, nil
	}

	r.DueDate = Format(NextDay(*due), loc)
	r.AllDay = true
	return r, nil
}

// IsMidnight reports whether t has no time-of-day component.
func IsMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond()/1000 == 0
}

// NextDay returns midnight of the calendar day after t, rolling the month against its
// real length and the year after December.
func NextDay(t time.Time) time.Time {
	year, month, day := t.Year(), t.Month(), t.Day()
	if day+1 > DaysIn(year, month) {
		day = 1
		if month == time.December {
			month = time.January
			year++
		} else {
			month++
		}
	} else {
		day++
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Location resolves an IANA zone name. An empty name means UTC.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", name, model.ErrInvalidArgument)
	}
	return loc, nil
}

// LocalToUTC reads the wall clock of t as a time in loc and returns the same instant in UTC,
// truncated to whole seconds.
func LocalToUTC(t time.Time, loc *time.Location) time.Time {
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	return local.UTC()
}

// Format renders t in the service's timestamp form: UTC, ISO-8601 with a +00:00 offset,
// then the last colon removed (2024-03-16T00:00:00+0000).
func Format(t time.Time, loc *time.Location) string {
	s := LocalToUTC(t, loc).Format("2006-01-02T15:04:05") + "+00:00"
	i := strings.LastIndex(s, ":")
	return s[:i] + s[i+1:]
}

// CompletedWindow returns the UTC from/to query values for completed tasks. Without an
// end the whole day of start is used; with full set both ends are widened to day bounds.
func CompletedWindow(start time.Time, end *time.Time, full bool, tz string) (from, to string, err error) {
	if end != nil && start.After(*end) {
		return "", "", fmt.Errorf("start %s occurs after end %s: %w", start.Format(QueryLayout), end.Format(QueryLayout), model.ErrInvalidArgument)
	}
	loc, err := Location(tz)
	if err != nil {
		return "", "", err
	}

	var last time.Time
	switch {
	case end == nil:
		start = dayStart(start)
		last = dayEnd(start)
	case full:
		start = dayStart(start)
		last = dayEnd(*end)
	default:
		last = *end
	}
	return LocalToUTC(start, loc).Format(QueryLayout), LocalToUTC(last, loc).Format(QueryLayout), nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
