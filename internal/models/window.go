package models

import (
	"fmt"
	"time"
)

// Window is an intraday trading window expressed as offsets from midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// ParseWindow parses "HH:MM" bounds. Both ends are inclusive.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("start time: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("end time: %w", err)
	}
	if e < s {
		return Window{}, fmt.Errorf("end time %s is before start time %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, expected HH:MM", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Contains reports whether t's wall clock in its own location falls inside the window.
func (w Window) Contains(t time.Time) bool {
	off := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return off >= w.Start && off <= w.End
}

// Bounds returns the window's absolute start and end on the given date.
func (w Window) Bounds(date time.Time) (time.Time, time.Time) {
	at := func(d time.Duration) time.Time {
		return time.Date(date.Year(), date.Month(), date.Day(),
			int(d/time.Hour), int(d%time.Hour/time.Minute), 0, 0, date.Location())
	}
	return at(w.Start), at(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", formatClock(w.Start), formatClock(w.End))
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
