package timeutil

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024/01/15")
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if !got.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("ERROR : wrong date parsed :", got)
	}

	got, err = ParseDate("2024/01/15 13:05:00")
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if !got.Equal(time.Date(2024, 1, 15, 13, 5, 0, 0, time.UTC)) {
		t.Fatal("ERROR : wrong timestamp parsed :", got)
	}

	for _, bad := range []string{"", "15/01/2024", "2024-01-15", "2024/13/01", "2024/01/15 25:00:00"} {
		if _, err = ParseDate(bad); err == nil {
			t.Fatal("ERROR : expected error for invalid date :", bad)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 30, 12, 30, 0, 0, time.UTC)
	if FormatDate(ts) != "2024/06/30" {
		t.Fatal("ERROR : wrong date format :", FormatDate(ts))
	}
	if FormatDateTime(ts) != "2024/06/30 12:30:00" {
		t.Fatal("ERROR : wrong timestamp format :", FormatDateTime(ts))
	}
	back, err := ParseDate(FormatDateTime(ts))
	if err != nil {
		t.Fatal("ERROR :", err)
	}
	if !back.Equal(ts) {
		t.Fatal("ERROR : round trip mismatch :", back)
	}
}

func TestMonthlyPeriods(t *testing.T) {
	start := time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	periods := MonthlyPeriods(start, end)
	want := []Period{
		{Year: 2023, Month: time.November},
		{Year: 2023, Month: time.December},
		{Year: 2024, Month: time.January},
		{Year: 2024, Month: time.February},
	}
	if len(periods) != len(want) {
		t.Fatal("ERROR : wrong period count :", len(periods))
	}
	for i := range want {
		if periods[i] != want[i] {
			t.Fatal("ERROR : wrong period at", i, ":", periods[i])
		}
	}

	// Same month collapses to one period.
	periods = MonthlyPeriods(start, start)
	if len(periods) != 1 || periods[0] != want[0] {
		t.Fatal("ERROR : wrong single period :", periods)
	}

	// Inverted range gives nothing.
	if periods = MonthlyPeriods(end, start); periods != nil {
		t.Fatal("ERROR : expected no periods for inverted range :", periods)
	}
}

func TestAlignToInterval(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 2, 30, 0, time.UTC)
	aligned := AlignToInterval(ts, DispatchInterval)
	if !aligned.Equal(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)) {
		t.Fatal("ERROR : wrong alignment :", aligned)
	}

	// A boundary time stays put.
	onBoundary := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)
	if !AlignToInterval(onBoundary, TradingInterval).Equal(onBoundary) {
		t.Fatal("ERROR : boundary time moved")
	}
}

func TestIntervalsBetween(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	if n := IntervalsBetween(start, end, DispatchInterval); n != 288 {
		t.Fatal("ERROR : wrong dispatch interval count :", n)
	}
	if n := IntervalsBetween(start, end, TradingInterval); n != 48 {
		t.Fatal("ERROR : wrong trading interval count :", n)
	}
	if n := IntervalsBetween(end, start, DispatchInterval); n != 0 {
		t.Fatal("ERROR : expected zero intervals for inverted range :", n)
	}
}

func TestDayEnd(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !DayEnd(date).Equal(date.AddDate(0, 0, 1)) {
		t.Fatal("ERROR : date-only end should cover the whole day")
	}
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	if !DayEnd(ts).Equal(ts) {
		t.Fatal("ERROR : timestamp end should be kept as is")
	}
}
