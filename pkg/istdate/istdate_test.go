package istdate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCalendarDateIsISTMidnight(t *testing.T) {
	got, err := ParseCalendarDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 18, 30, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseCalendarDateRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "2024-3-15", "15-03-2024", "2024/03/15", "2024-02-30", "2024-13-01", "yesterday"} {
		_, err := ParseCalendarDate(raw)
		assert.True(t, errors.Is(err, ErrInvalidDateFormat), raw)
	}
}

func TestCalendarDateRoundTrip(t *testing.T) {
	for _, raw := range []string{"2024-01-01", "2024-02-29", "2023-12-31", "2000-06-15"} {
		parsed, err := ParseCalendarDate(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, ToCalendarDateString(parsed))
	}
}

func TestToCalendarDateStringUsesIST(t *testing.T) {
	// 20:00 UTC is already 01:30 the next day in IST.
	assert.Equal(t, "2024-03-15", ToCalendarDateString(time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-14", ToCalendarDateString(time.Date(2024, 3, 14, 18, 29, 59, 0, time.UTC)))
}

func TestNextCalendarDay(t *testing.T) {
	midday := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC), NextCalendarDay(midday))

	lastOfMonth, err := ParseCalendarDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", ToCalendarDateString(NextCalendarDay(lastOfMonth)))
}

func TestSingleDayRangeBoundsCoverExactlyOneISTDay(t *testing.T) {
	r, err := NewRange("2024-03-15", "2024-03-15")
	require.NoError(t, err)

	from, to := r.Bounds()
	assert.Equal(t, 24*time.Hour, to.Sub(from))
	assert.Equal(t, "2024-03-15", ToCalendarDateString(from))
	assert.Equal(t, "2024-03-15", ToCalendarDateString(to.Add(-time.Nanosecond)))
	assert.Equal(t, 1, r.Days())
}

func TestResolvePreset(t *testing.T) {
	// Thursday 14 March 2024, 10:00 IST.
	at := time.Date(2024, 3, 14, 4, 30, 0, 0, time.UTC)

	today := ResolvePreset(PresetToday, at)
	assert.Equal(t, "2024-03-14", ToCalendarDateString(today.Start))
	assert.Equal(t, "2024-03-14", ToCalendarDateString(today.End))

	week := ResolvePreset(PresetThisWeek, at)
	assert.Equal(t, "2024-03-11", ToCalendarDateString(week.Start))
	assert.Equal(t, "2024-03-14", ToCalendarDateString(week.End))

	month := ResolvePreset(PresetThisMonth, at)
	assert.Equal(t, "2024-03-01", ToCalendarDateString(month.Start))

	assert.True(t, ResolvePreset(PresetAll, at).All)
}

func TestResolvePresetThisWeekOnSunday(t *testing.T) {
	// Sunday 17 March 2024 at 23:00 IST.
	at := time.Date(2024, 3, 17, 17, 30, 0, 0, time.UTC)
	week := ResolvePreset(PresetThisWeek, at)
	assert.Equal(t, "2024-03-11", ToCalendarDateString(week.Start))
	assert.Equal(t, "2024-03-17", ToCalendarDateString(week.End))
}

func TestParsePreset(t *testing.T) {
	p, err := ParsePreset("thisMonth")
	require.NoError(t, err)
	assert.Equal(t, PresetThisMonth, p)

	_, err = ParsePreset("lastYear")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestTodayUsesClock(t *testing.T) {
	original := now
	defer func() { now = original }()
	now = func() time.Time { return time.Date(2024, 12, 31, 19, 0, 0, 0, time.UTC) }

	assert.Equal(t, "2025-01-01", Today())
}

func TestFormatDisplay(t *testing.T) {
	d, err := ParseCalendarDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, "05 Mar 2024", FormatDisplay(d))
}
