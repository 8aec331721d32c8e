package model

import "time"

// InstanceStatus tracks an occurrence through the planning lifecycle.
type InstanceStatus int

const (
	StatusPending InstanceStatus = iota
	StatusPlaced
	StatusConfirmed
	StatusCompleted
	StatusUnschedulable
)

// String returns a human-readable representation of the status.
func (s InstanceStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPlaced:
		return "placed"
	case StatusConfirmed:
		return "confirmed"
	case StatusCompleted:
		return "completed"
	case StatusUnschedulable:
		return "unschedulable"
	default:
		return "unknown"
	}
}

// TravelSegment is the journey committed alongside a placed instance. It is
// derived data: whenever either endpoint of the journey changes the segment
// is recomputed, never patched.
type TravelSegment struct {
	Duration   time.Duration
	Access     AccessType
	Transfers  int
	DistanceKm float64
}

// ErrandInstance is one concrete occurrence of a definition, placed (or
// failing placement) on a specific date.
type ErrandInstance struct {
	ID           string
	DefinitionID string
	Def          *ErrandDefinition

	Date  time.Time
	Start time.Time
	End   time.Time

	// Location is the resolved venue for this occurrence.
	Location     Coordinate
	LocationName string

	Status InstanceStatus
	Travel TravelSegment
}

// OccupiedFrom returns the start of the span this instance blocks,
// travel included.
func (i ErrandInstance) OccupiedFrom() time.Time {
	return i.Start.Add(-i.Travel.Duration)
}

// Overlaps reports whether two placed instances collide, travel included.
func (i ErrandInstance) Overlaps(other ErrandInstance) bool {
	return i.OccupiedFrom().Before(other.End) && other.OccupiedFrom().Before(i.End)
}

// InWindow reports whether the committed span respects the definition window.
func (i ErrandInstance) InWindow() bool {
	if i.Def == nil {
		return false
	}
	ws, we := i.Def.Window.On(i.Date)
	return !i.Start.Before(ws) && !i.End.After(we)
}
