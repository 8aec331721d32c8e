package ledger

import (
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// RefKind classifies the location context at a free interval's edge.
type RefKind int

const (
	// RefHome marks the start of a day: the user leaves from home.
	RefHome RefKind = iota
	// RefPlace is a known position, either a committed errand or a located
	// busy event.
	RefPlace
	// RefOpaque is an unlocated busy event. Travel across an opaque edge
	// cannot be chained and is charged conservatively from or to home.
	RefOpaque
	// RefDayEnd marks the end of the planning day; nothing follows, so no
	// return journey is charged.
	RefDayEnd
	// RefLoose is a remote errand: it bounds the interval in time but makes
	// no position demand, and the position context passes through it.
	RefLoose
)

// Ref is the location context entering or leaving a free interval.
// InstanceID is set when the boundary is a committed errand, so cascades can
// find the neighbours pinning an interval.
type Ref struct {
	Kind       RefKind
	Coord      model.Coordinate
	InstanceID string
}

// FreeInterval is a raw gap between occupiers: no busy event or committed
// errand overlaps [Start, End). Travel arithmetic happens in placement;
// the interval only carries the contexts needed for it.
type FreeInterval struct {
	Start time.Time
	End   time.Time
	From  Ref
	To    Ref
}

// Span returns the width of the interval.
func (f FreeInterval) Span() time.Duration {
	return f.End.Sub(f.Start)
}

// Contains reports whether [start, end) fits inside the interval.
func (f FreeInterval) Contains(start, end time.Time) bool {
	return !start.Before(f.Start) && !end.After(f.End)
}

// Intersects reports whether the interval overlaps [from, to).
func (f FreeInterval) Intersects(from, to time.Time) bool {
	return f.Start.Before(to) && from.Before(f.End)
}
