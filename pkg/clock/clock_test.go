package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    WallClock
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:00", 0, true},
		{"nope", 0, true},
		{"", 0, true},
		// Every digit position must be a digit; trailing garbage and
		// embedded spaces are not times.
		{"12:3x", 0, true},
		{"09: 5", 0, true},
		{" 9:05", 0, true},
		{"1x:05", 0, true},
		{"09-05", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWallClockString(t *testing.T) {
	assert.Equal(t, "09:05", MustParse("09:05").String())
	assert.Equal(t, "10:00", MustParse("09:30").Add(30).String())
}

func TestIntervalOverlaps(t *testing.T) {
	base := NewInterval(MustParse("09:00"), 30)

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", NewInterval(MustParse("09:00"), 30), true},
		{"contained", NewInterval(MustParse("09:10"), 10), true},
		{"straddles start", NewInterval(MustParse("08:45"), 30), true},
		{"straddles end", NewInterval(MustParse("09:15"), 30), true},
		{"abuts before", NewInterval(MustParse("08:30"), 30), false},
		{"abuts after", NewInterval(MustParse("09:30"), 30), false},
		{"disjoint", NewInterval(MustParse("11:00"), 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestIntervalMinutes(t *testing.T) {
	assert.Equal(t, 45, NewInterval(MustParse("09:00"), 45).Minutes())
	assert.Equal(t, 0, Interval{}.Minutes())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-11")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", FormatDate(d))

	_, err = ParseDate("11/03/2026")
	assert.Error(t, err)
}

func TestStartOfWeek(t *testing.T) {
	// 2026-03-11 is a Wednesday; the week is anchored on Sunday.
	wed := time.Date(2026, 3, 11, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-08", FormatDate(StartOfWeek(wed)))

	sun := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-08", FormatDate(StartOfWeek(sun)))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}
