package model

import "fmt"

// ConflictKind names the dimension along which two related errands exclude
// each other.
type ConflictKind int

const (
	// ConflictNone is the zero value: the definition declares no conflicts.
	ConflictNone ConflictKind = iota
	// ConflictTime keeps the errands off the same day.
	ConflictTime
	// ConflictLocation keeps the errands away from the same venue.
	ConflictLocation
	// ConflictBoth applies both exclusions.
	ConflictBoth
)

// String returns the configuration name of the conflict kind.
func (k ConflictKind) String() string {
	switch k {
	case ConflictNone:
		return "none"
	case ConflictTime:
		return "time"
	case ConflictLocation:
		return "location"
	case ConflictBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ExcludesDay reports whether the kind forbids sharing a day.
func (k ConflictKind) ExcludesDay() bool {
	return k == ConflictTime || k == ConflictBoth
}

// ExcludesVenue reports whether the kind forbids sharing a venue.
func (k ConflictKind) ExcludesVenue() bool {
	return k == ConflictLocation || k == ConflictBoth
}

// ParseConflictKind converts a configuration string into a ConflictKind.
// The empty string maps to ConflictNone.
func ParseConflictKind(s string) (ConflictKind, error) {
	switch s {
	case "":
		return ConflictNone, nil
	case "time":
		return ConflictTime, nil
	case "location":
		return ConflictLocation, nil
	case "both":
		return ConflictBoth, nil
	default:
		return ConflictNone, fmt.Errorf("unknown conflict kind %q", s)
	}
}
