package timeutil

import (
	"time"

	"github.com/pkg/errors"
)

// AEMO date formats. Timestamps in MMS reports and user requests are naive
// NEM time (Australian Eastern Standard Time, no daylight saving), so all
// values are handled as wall-clock times in UTC.
const (
	// DateFormat is the AEMO date format for request parameters.
	DateFormat = "2006/01/02"
	// DateTimeFormat is the AEMO timestamp format used inside report files.
	DateTimeFormat = "2006/01/02 15:04:05"
)

// Interval lengths of the NEM market data reports.
const (
	// DispatchInterval is the length of a dispatch interval.
	DispatchInterval = 5 * time.Minute
	// TradingInterval is the length of a trading (settlement) interval.
	TradingInterval = 30 * time.Minute
)

// ParseDate parses an AEMO format date string, with or without a time
// component.
func ParseDate(s string) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	if len(s) > len(DateFormat) {
		t, err = time.Parse(DateTimeFormat, s)
	} else {
		t, err = time.Parse(DateFormat, s)
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "invalid date format")
	}
	return t, nil
}

// FormatDate formats a time as an AEMO date string.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// FormatDateTime formats a time as an AEMO timestamp string.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeFormat)
}

// Period represents one calendar month of the archive.
type Period struct {
	Year  int
	Month time.Month
}

// MonthlyPeriods returns the calendar months covering start to end,
// both inclusive. Returns nil if end is before start.
func MonthlyPeriods(start, end time.Time) []Period {
	if end.Before(start) {
		return nil
	}
	var periods []Period
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		periods = append(periods, Period{Year: cur.Year(), Month: cur.Month()})
		cur = cur.AddDate(0, 1, 0)
	}
	return periods
}

// AlignToInterval rounds a time up to the end of the interval containing it.
// Settlement timestamps label the end of an interval, so a time already on
// a boundary is returned unchanged.
func AlignToInterval(t time.Time, interval time.Duration) time.Time {
	aligned := t.Truncate(interval)
	if aligned.Equal(t) {
		return t
	}
	return aligned.Add(interval)
}

// IntervalsBetween returns the number of complete intervals from start to
// end. Returns zero if end is not after start.
func IntervalsBetween(start, end time.Time, interval time.Duration) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / interval)
}

// DayEnd returns the exclusive upper bound for a request end date: the
// start of the next day for a date-only value, the value itself otherwise.
// The first settlement timestamp of a day is 00:05, labelled after the day
// starts, so a date-only end covers the whole day it names.
func DayEnd(t time.Time) time.Time {
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.AddDate(0, 0, 1)
	}
	return t
}
