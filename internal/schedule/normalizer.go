// Package schedule converts weekly recurring local working hours into the
// UTC active-hour windows the scheduling proxy consumes.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTimeRange is returned when a window ends at or before it starts.
	ErrInvalidTimeRange = errors.New("schedule: window end must be after start")

	// ErrTooManyWindows is returned when a weekday carries more than two windows.
	ErrTooManyWindows = errors.New("schedule: at most two windows per weekday")
)

// maxWindowsPerDay mirrors the two-splits-per-day limit enforced when hours
// are entered.
const maxWindowsPerDay = 2

// WeeklyWindow is one recurring local-time working window, e.g. Monday
// 09:00-17:00 in the practitioner's timezone.
type WeeklyWindow struct {
	Weekday    time.Weekday `json:"weekday"`
	StartLocal string       `json:"start_local"` // "09:00", 24-hour clock
	EndLocal   string       `json:"end_local"`   // "17:00"
}

// ActiveHour is a UTC availability window keyed by UTC weekday. The weekday
// is the UTC-side weekday of the converted start instant, which may differ
// from the source weekday when the offset crosses midnight. Consumers must
// index by this weekday, never by the local one.
type ActiveHour struct {
	Weekday time.Weekday `json:"weekday"`
	FromUTC string       `json:"from_utc"` // "07:00"
	ToUTC   string       `json:"to_utc"`   // "15:00", wraps past midnight when smaller than FromUTC
}

// referenceSunday anchors every conversion to a fixed ISO week so that the
// same (windows, timezone) input always yields the same output regardless of
// when Normalize runs. 2026-01-04 is a Sunday; January avoids the DST window
// in the timezones this service is deployed for.
var referenceSunday = time.Date(2026, time.January, 4, 0, 0, 0, 0, time.UTC)

// Normalize converts local weekly windows into UTC active hours. All windows
// are validated before any conversion is attempted: a single invalid window
// fails the whole call with no partial output.
func Normalize(windows []WeeklyWindow, loc *time.Location) ([]ActiveHour, error) {
	if loc == nil {
		loc = time.UTC
	}

	perDay := make(map[time.Weekday]int, 7)
	for _, w := range windows {
		startMin, err := parseClock(w.StartLocal)
		if err != nil {
			return nil, fmt.Errorf("schedule: weekday %s: %w", w.Weekday, err)
		}
		endMin, err := parseClock(w.EndLocal)
		if err != nil {
			return nil, fmt.Errorf("schedule: weekday %s: %w", w.Weekday, err)
		}
		if endMin <= startMin {
			return nil, fmt.Errorf("%w: %s %s-%s", ErrInvalidTimeRange, w.Weekday, w.StartLocal, w.EndLocal)
		}
		perDay[w.Weekday]++
		if perDay[w.Weekday] > maxWindowsPerDay {
			return nil, fmt.Errorf("%w: %s", ErrTooManyWindows, w.Weekday)
		}
	}

	hours := make([]ActiveHour, 0, len(windows))
	for _, w := range windows {
		startMin, _ := parseClock(w.StartLocal)
		endMin, _ := parseClock(w.EndLocal)

		day := referenceSunday.AddDate(0, 0, int(w.Weekday))
		start := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc).UTC()
		end := time.Date(day.Year(), day.Month(), day.Day(), endMin/60, endMin%60, 0, 0, loc).UTC()

		hours = append(hours, ActiveHour{
			Weekday: start.Weekday(),
			FromUTC: start.Format("15:04"),
			ToUTC:   end.Format("15:04"),
		})
	}
	return hours, nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
