package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SessionDateLayout = "2006-01-02"
	ClockLayout       = "15:04"
)

var (
	ErrInvalidSessionDate = errors.New("session date must be YYYY-MM-DD")
	ErrInvalidClockTime   = errors.New("time must be HH:MM")
)

// ParseSessionDate validates a "YYYY-MM-DD" calendar date.
func ParseSessionDate(s string) (time.Time, error) {
	t, err := time.Parse(SessionDateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidSessionDate
	}
	return t, nil
}

// ParseClockTime validates an "HH:MM" time of day and returns hour and minute.
func ParseClockTime(s string) (int, int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, 0, ErrInvalidClockTime
	}
	return t.Hour(), t.Minute(), nil
}

// SessionStart combines a session date and an "HH:MM" time in loc into an absolute instant (UTC).
func SessionStart(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := ParseSessionDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClockTime(clock)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc).UTC(), nil
}

// ValidateFieldKey checks that key can be used as a single document field-path
// segment (progression.<key>).
func ValidateFieldKey(key string) error {
	if key == "" {
		return errors.New("key is empty")
	}
	if strings.Contains(key, ".") || strings.HasPrefix(key, "$") {
		return fmt.Errorf("key %q may not contain '.' or start with '$'", key)
	}
	return nil
}
