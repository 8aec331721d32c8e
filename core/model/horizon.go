package model

import (
	"fmt"
	"time"
)

// Horizon is the planning range: a first day at local midnight and a number
// of days. The end is exclusive.
type Horizon struct {
	Start time.Time
	Days  int
}

// NewHorizon builds a horizon starting at the midnight of from.
func NewHorizon(from time.Time, days int) Horizon {
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	return Horizon{Start: midnight, Days: days}
}

// End returns the exclusive end of the horizon.
func (h Horizon) End() time.Time {
	return h.Start.AddDate(0, 0, h.Days)
}

// Day returns the midnight of the i-th day of the horizon.
func (h Horizon) Day(i int) time.Time {
	return h.Start.AddDate(0, 0, i)
}

// Contains reports whether t falls inside the horizon.
func (h Horizon) Contains(t time.Time) bool {
	return !t.Before(h.Start) && t.Before(h.End())
}

// Validate checks the horizon is usable for planning.
func (h Horizon) Validate() error {
	if h.Start.IsZero() {
		return fmt.Errorf("horizon start is unset")
	}
	if h.Days <= 0 {
		return fmt.Errorf("horizon must cover at least one day")
	}
	return nil
}
