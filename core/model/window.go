package model

import (
	"fmt"
	"time"
)

// MinuteOfDay counts minutes since local midnight, 0 through 1440.
type MinuteOfDay int

// String formats the minute as HH:MM.
func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// At anchors the minute onto a calendar day in the day's location.
func (m MinuteOfDay) At(day time.Time) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(m) * time.Minute)
}

// ParseMinuteOfDay reads an HH:MM string.
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	var h, min int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &min); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 24 || min < 0 || min > 59 || (h == 24 && min != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return MinuteOfDay(h*60 + min), nil
}

// TimeWindow bounds when an errand may start and finish within any single day.
type TimeWindow struct {
	Start MinuteOfDay
	End   MinuteOfDay
}

// Validate checks that the window is ordered and inside a single day.
func (w TimeWindow) Validate() error {
	if w.Start < 0 || w.End > 24*60 {
		return fmt.Errorf("window %s-%s outside the day", w.Start, w.End)
	}
	if w.End <= w.Start {
		return fmt.Errorf("window end %s not after start %s", w.End, w.Start)
	}
	return nil
}

// Duration returns the width of the window.
func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.End-w.Start) * time.Minute
}

// On projects the window onto a calendar day.
func (w TimeWindow) On(day time.Time) (time.Time, time.Time) {
	return w.Start.At(day), w.End.At(day)
}
