package extract

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedDate is returned when a day string does not parse as a
// calendar date.
var ErrMalformedDate = errors.New("malformed date")

const dayFormat = "2006-01-02"

// MinutesAsClock converts a minute-of-day counter to an HH:MM string.
// Counters past 1440 wrap via modulo rather than erroring.
func MinutesAsClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", (minutes/60)%24, minutes%60)
}

// MinuteToTime composes a YYYY-MM-DD day string and a minute-of-day counter
// into an absolute local-time instant.
func MinuteToTime(minute int, day string) (time.Time, error) {
	ts, err := time.ParseInLocation(dayFormat+" 15:04", day+" "+MinutesAsClock(minute), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", day, ErrMalformedDate)
	}
	return ts, nil
}

// DayStart parses a YYYY-MM-DD day string as local midnight.
func DayStart(day string) (time.Time, error) {
	ts, err := time.ParseInLocation(dayFormat, day, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", day, ErrMalformedDate)
	}
	return ts, nil
}
