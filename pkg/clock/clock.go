package clock

import (
	"errors"
	"fmt"
	"time"
)

// ErrBadTime is returned when a wall-clock string cannot be parsed.
var ErrBadTime = errors.New("bad wall-clock time")

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// WallClock is a time of day expressed as minutes since midnight.
// All wall-clocks are interpreted in the clinic's local calendar;
// no timezone conversion happens anywhere in the client.
type WallClock int

// Parse parses a 24-hour "HH:MM" string. All four digit positions must
// be ASCII digits; anything else is rejected.
func Parse(s string) (WallClock, error) {
	if len(s) != 5 || s[2] != ':' ||
		!isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[3]) || !isDigit(s[4]) {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	return WallClock(h*60 + m), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// MustParse is Parse for compile-time constants in tests and seeds.
func MustParse(s string) WallClock {
	w, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return w
}

// Add returns the wall-clock offset by the given number of minutes.
func (w WallClock) Add(minutes int) WallClock {
	return w + WallClock(minutes)
}

func (w WallClock) String() string {
	return fmt.Sprintf("%02d:%02d", int(w)/60, int(w)%60)
}

// Interval is a half-open wall-clock interval [Start, End).
type Interval struct {
	Start WallClock
	End   WallClock
}

// NewInterval builds the interval starting at start and lasting the
// given number of minutes.
func NewInterval(start WallClock, minutes int) Interval {
	return Interval{Start: start, End: start.Add(minutes)}
}

// Overlaps reports whether two half-open intervals intersect. Intervals
// that merely touch endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Minutes returns the interval length.
func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders a calendar date as "YYYY-MM-DD".
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// SameDay reports whether two instants fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates an instant to midnight of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Sunday of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	d := DateOnly(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}
