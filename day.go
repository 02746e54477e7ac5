package expensebuddy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const readDayFormat = "2006-1-2" // Permissive read format (allows single-digit month/day).

// DayFormat is the format used to represent calendar days as strings in ISO-8601 format.
const DayFormat = "2006-01-02" // write format

// Day represents a calendar day, the granularity at which the ledger is
// partitioned for syncing.
type Day struct {
	y int
	m time.Month
	d int
}

// NewDay returns a normalized Day for the given year, month, and day.
func NewDay(year int, month time.Month, day int) Day {
	d := Day{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// time returns a time.Time that is a canonical representation of that day (at midnight UTC).
func (d Day) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// DayOf returns the calendar day on which t falls, in UTC.
func DayOf(t time.Time) Day { return NewDay(t.UTC().Date()) }

// Today returns the current day.
func Today() Day { return DayOf(time.Now()) }

// Before reports whether the day d is before x.
func (d Day) Before(x Day) bool { return d.time().Before(x.time()) }

// After reports whether the day d is after x.
func (d Day) After(x Day) bool { return d.time().After(x.time()) }

// Add returns a new Day with the given number of days added.
func (d Day) Add(i int) Day { return NewDay(d.y, d.m, d.d+i) }

// Year returns the year of the day.
func (d Day) Year() int { return d.y }

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d == Day{} }

// String formats the day in its standard format.
func (d Day) String() string { return d.time().Format(DayFormat) }

// ParseDay parses a Day from a string. It is lenient and accepts formats like "2025-7-1".
func ParseDay(str string) (Day, error) {
	on, err := time.Parse(readDayFormat, str)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q want format %q: %w", str, readDayFormat, err)
	}
	return NewDay(on.Date()), nil
}

// MustParseDay is like ParseDay but panics on error.
func MustParseDay(str string) Day {
	d, err := ParseDay(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// UnmarshalJSON implements the json specific way to unmarshal a day from a json string.
func (j *Day) UnmarshalJSON(bytes []byte) error {
	var str string
	if err := json.Unmarshal(bytes, &str); err != nil {
		return err
	}
	d, err := ParseDay(str)
	if err != nil {
		return err
	}
	*j = d
	return nil
}
func (j Day) MarshalJSON() ([]byte, error) {
	str := j.String()
	return json.Marshal(&str)
}

// check that a Day pointer is a valid json marshal/unmarshaler type.
var _ json.Marshaler = (*Day)(nil)
var _ json.Unmarshaler = (*Day)(nil)

// WindowStart returns the first day of a window of n days ending on today,
// inclusive. WindowStart(d, 1) is d itself.
func WindowStart(today Day, n int) Day { return today.Add(1 - n) }

// Date locates an expense in time: the calendar day it belongs to, plus an
// optional time of day kept as entered. Only the day takes part in
// partitioning and merging decisions.
type Date struct {
	Day   Day
	Clock string // optional "15:04" or "15:04:05" time of day, empty when not set
}

// clock formats accepted for the optional time of day part.
var clockFormats = []string{"15:04:05", "15:04"}

// ParseDate parses a Date from a string: a day like "2026-08-22", optionally
// followed by a time of day like "2026-08-22T19:30".
func ParseDate(str string) (Date, error) {
	dayStr, clock, hasClock := strings.Cut(str, "T")
	day, err := ParseDay(dayStr)
	if err != nil {
		return Date{}, err
	}
	if !hasClock {
		return Date{Day: day}, nil
	}
	for _, format := range clockFormats {
		if t, err := time.Parse(format, clock); err == nil {
			return Date{Day: day, Clock: t.Format(format)}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid time of day %q in date %q: want %q", clock, str, clockFormats[1])
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(str string) Date {
	d, err := ParseDate(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// String formats the date in its standard format, with the time of day part
// only when one was set.
func (d Date) String() string {
	if d.Clock == "" {
		return d.Day.String()
	}
	return d.Day.String() + "T" + d.Clock
}
