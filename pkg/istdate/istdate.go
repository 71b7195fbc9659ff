// Package istdate normalises attendance dates to India Standard Time calendar
// days. Every instant produced here is an IST midnight expressed in UTC.
package istdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Layout is the wire format for calendar dates.
	Layout = "2006-01-02"
	// DisplayLayout is used for human facing labels such as report titles.
	DisplayLayout = "02 Jan 2006"

	istOffsetSeconds = 5*60*60 + 30*60
)

// Location is IST, a fixed UTC+5:30 zone without daylight saving.
var Location = time.FixedZone("IST", istOffsetSeconds)

// ErrInvalidDateFormat is returned for anything that is not a real YYYY-MM-DD date.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

// ErrUnknownPreset is returned by ParsePreset for unsupported preset names.
var ErrUnknownPreset = errors.New("unknown date preset")

var now = time.Now

// ParseCalendarDate parses s as an IST calendar date and returns its midnight as a UTC instant.
func ParseCalendarDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(Layout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	t, err := time.ParseInLocation(Layout, s, Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	return t.UTC(), nil
}

// ToCalendarDateString renders the IST calendar date containing t.
func ToCalendarDateString(t time.Time) string {
	return t.In(Location).Format(Layout)
}

// StartOfDay returns IST midnight of the calendar day containing t.
func StartOfDay(t time.Time) time.Time {
	local := t.In(Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location).UTC()
}

// NextCalendarDay returns IST midnight of the day after the one containing t.
// It is the exclusive upper bound for range queries.
func NextCalendarDay(t time.Time) time.Time {
	local := StartOfDay(t).In(Location)
	return local.AddDate(0, 0, 1).UTC()
}

// Today returns the current IST calendar date.
func Today() string {
	return ToCalendarDateString(now())
}

// FormatDisplay renders t as "02 Jan 2006" in IST.
func FormatDisplay(t time.Time) string {
	return t.In(Location).Format(DisplayLayout)
}

// DaysBetween counts whole IST calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(StartOfDay(end).Sub(StartOfDay(start)).Hours() / 24)
}

// Range is an inclusive span of IST calendar days. All marks an unbounded range.
type Range struct {
	Start time.Time
	End   time.Time
	All   bool
}

// NewRange parses inclusive start and end dates.
func NewRange(start, end string) (Range, error) {
	s, err := ParseCalendarDate(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseCalendarDate(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: s, End: e}, nil
}

// Bounds returns the half-open query interval [Start, NextCalendarDay(End)).
func (r Range) Bounds() (time.Time, time.Time) {
	return StartOfDay(r.Start), NextCalendarDay(r.End)
}

// Days is the inclusive number of calendar days covered.
func (r Range) Days() int {
	if r.All {
		return 0
	}
	return DaysBetween(r.Start, r.End) + 1
}

// String renders the range for filenames, logs and cache keys.
func (r Range) String() string {
	if r.All {
		return "all"
	}
	return ToCalendarDateString(r.Start) + "_" + ToCalendarDateString(r.End)
}

// Preset names a relative range resolved against the current IST date.
type Preset string

const (
	PresetToday     Preset = "today"
	PresetThisWeek  Preset = "thisWeek"
	PresetThisMonth Preset = "thisMonth"
	PresetAll       Preset = "all"
)

// ParsePreset validates a preset name.
func ParsePreset(raw string) (Preset, error) {
	switch p := Preset(strings.TrimSpace(raw)); p {
	case PresetToday, PresetThisWeek, PresetThisMonth, PresetAll:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreset, raw)
}

// ResolvePreset expands p relative to at. Weeks start on Monday.
func ResolvePreset(p Preset, at time.Time) Range {
	today := StartOfDay(at)
	local := today.In(Location)
	switch p {
	case PresetThisWeek:
		offset := (int(local.Weekday()) + 6) % 7
		return Range{Start: local.AddDate(0, 0, -offset).UTC(), End: today}
	case PresetThisMonth:
		first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, Location)
		return Range{Start: first.UTC(), End: today}
	case PresetAll:
		return Range{All: true}
	default:
		return Range{Start: today, End: today}
	}
}

// ResolvePresetNow expands p against the current time.
func ResolvePresetNow(p Preset) Range {
	return ResolvePreset(p, now())
}
