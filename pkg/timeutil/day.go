// Package timeutil holds the calendar helpers used to index tasks by day.
package timeutil

import (
	"fmt"
	"time"
)

// LayoutISO is the textual form of a Day.
const LayoutISO = "2006-01-02"

// Day is a civil date in the local calendar. It is comparable and safe to use
// as a map key, unlike time.Time values that carry a location pointer and a
// monotonic reading.
type Day struct {
	year  int
	month time.Month
	day   int
}

// DayOf truncates t to its local calendar day.
func DayOf(t time.Time) Day {
	y, m, d := t.In(time.Local).Date()
	return Day{year: y, month: m, day: d}
}

// Date builds a Day, normalising out-of-range values the way time.Date does.
func Date(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.Local))
}

// Today returns the current local day.
func Today() Day {
	return DayOf(time.Now())
}

// ParseDay parses the LayoutISO form. "today" is accepted as a shorthand.
func ParseDay(s string) (Day, error) {
	if s == "today" {
		return Today(), nil
	}
	t, err := time.ParseInLocation(LayoutISO, s, time.Local)
	if err != nil {
		return Day{}, fmt.Errorf("timeutil: parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// Time returns local midnight at the start of d.
func (d Day) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.Local)
}

// At returns the instant on d at the given local clock time.
func (d Day) At(hour, minute int) time.Time {
	return time.Date(d.year, d.month, d.day, hour, minute, 0, 0, time.Local)
}

// AddDays moves d by n calendar days.
func (d Day) AddDays(n int) Day {
	return DayOf(time.Date(d.year, d.month, d.day+n, 12, 0, 0, 0, time.Local))
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Day) Compare(o Day) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }
func (d Day) After(o Day) bool  { return d.Compare(o) > 0 }

// DaysUntil counts calendar days from d to o (negative when o is earlier).
func (d Day) DaysUntil(o Day) int {
	a := time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC)
	b := time.Date(o.year, o.month, o.day, 12, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / day)
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalText encodes d in LayoutISO.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes LayoutISO. Empty input yields the zero Day.
func (d *Day) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	return DayOf(now).AddDays(1).Time()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
