package model

import "time"

// BusyEvent is an existing calendar commitment the planner must work around.
// Events come from a calendar provider and are read-only input.
type BusyEvent struct {
	Title string
	Start time.Time
	End   time.Time

	// Location is nil when the calendar entry carries no usable position.
	// An unlocated event still blocks its span but leaves the surrounding
	// location context opaque.
	Location *Coordinate

	// Ignorable marks entries the user has flagged as non-blocking
	// (reminders, all-day banners). They are dropped from the busy set.
	Ignorable bool
}

// Span returns the blocked interval.
func (b BusyEvent) Span() (time.Time, time.Time) {
	return b.Start, b.End
}

// Opaque reports whether the event blocks time without revealing where the
// user will be.
func (b BusyEvent) Opaque() bool {
	return !b.Ignorable && b.Location == nil
}
