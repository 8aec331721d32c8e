package model

import "fmt"

// AccessType defines how the user reaches an errand location.
type AccessType int

const (
	AccessDrive AccessType = iota
	AccessBus
	AccessTrain
	AccessTransit
	AccessBike
	AccessWalk
)

// String returns a human-readable representation of the access type.
func (a AccessType) String() string {
	switch a {
	case AccessDrive:
		return "drive"
	case AccessBus:
		return "bus"
	case AccessTrain:
		return "train"
	case AccessTransit:
		return "transit"
	case AccessBike:
		return "bike"
	case AccessWalk:
		return "walk"
	default:
		return "unknown"
	}
}

// IsTransit returns true for modes that run on a timetable and can involve
// line changes.
func (a AccessType) IsTransit() bool {
	return a == AccessBus || a == AccessTrain || a == AccessTransit
}

// ParseAccessType converts a configuration string into an AccessType.
func ParseAccessType(s string) (AccessType, error) {
	switch s {
	case "drive", "car":
		return AccessDrive, nil
	case "bus":
		return AccessBus, nil
	case "train":
		return AccessTrain, nil
	case "transit", "public":
		return AccessTransit, nil
	case "bike", "cycle":
		return AccessBike, nil
	case "walk", "foot":
		return AccessWalk, nil
	default:
		return AccessDrive, fmt.Errorf("unknown access type %q", s)
	}
}
