package model

import "time"

// DefaultPriority is assumed when a definition does not set one.
const DefaultPriority = 3

// ErrandDefinition is the immutable template an occurrence is planned from.
// The planning engine never mutates definitions; all scheduling state lives
// on instances.
type ErrandDefinition struct {
	ID       string
	Title    string
	Category string

	Location LocationSpec
	Access   AccessType

	// Priority orders competing errands, higher first.
	Priority int

	// Duration is the nominal time on site, travel excluded.
	Duration time.Duration

	// Window constrains the start and end of each occurrence within its day.
	Window TimeWindow

	Repeat   RepeatRule
	Interval IntervalRange

	// FlexStart and FlexEnd let the window edges stretch by
	// Interval.Tolerance when no slot fits inside the strict window.
	FlexStart bool
	FlexEnd   bool

	// FlexDuration allows shrinking towards MinDuration when a slot is too
	// tight for the nominal duration. MaxDuration bounds interactive
	// extensions; placement itself never grows an errand.
	FlexDuration bool
	MinDuration  time.Duration
	MaxDuration  time.Duration

	// Complementary lists definitions that belong together with this one.
	// The booleans refine what placement enforces: occurrences must share a
	// day, run after their partners, or share a venue.
	Complementary        []string
	SameDayRequired      bool
	OrderRequired        bool
	SameLocationRequired bool

	// Conflicting lists definitions this one must stay clear of;
	// ConflictKind selects the dimension (day, venue, or both).
	Conflicting  []string
	ConflictKind ConflictKind
}

// RelatedTo reports whether other appears in either relation list.
func (d ErrandDefinition) RelatedTo(other string) bool {
	for _, id := range d.Complementary {
		if id == other {
			return true
		}
	}
	for _, id := range d.Conflicting {
		if id == other {
			return true
		}
	}
	return false
}

// EffectivePriority returns the configured priority or the default.
func (d ErrandDefinition) EffectivePriority() int {
	if d.Priority == 0 {
		return DefaultPriority
	}
	return d.Priority
}

// ShortestDuration is the smallest on-site time a placement may commit.
func (d ErrandDefinition) ShortestDuration() time.Duration {
	if d.FlexDuration && d.MinDuration > 0 && d.MinDuration < d.Duration {
		return d.MinDuration
	}
	return d.Duration
}

// Validate checks that the definition is well formed. It returns a
// *ValidationError so a planning pass can skip the definition and continue.
func (d ErrandDefinition) Validate() error {
	if d.ID == "" {
		return newValidationError("", "id", "missing definition ID")
	}
	if d.Duration <= 0 {
		return newValidationError(d.ID, "duration", "duration must be positive")
	}
	if err := d.Window.Validate(); err != nil {
		return newValidationError(d.ID, "window", err.Error())
	}
	if d.Window.Duration() < d.ShortestDuration() {
		return newValidationError(d.ID, "window", "window shorter than the errand itself")
	}
	if d.Access < AccessDrive || d.Access > AccessWalk {
		return newValidationError(d.ID, "access", "unknown access type")
	}
	if d.Priority < 0 {
		return newValidationError(d.ID, "priority", "priority must not be negative")
	}
	if err := d.Location.validate(d.ID); err != nil {
		return err
	}
	if d.FlexDuration {
		if d.MinDuration <= 0 {
			return newValidationError(d.ID, "min_duration", "flexible duration needs a positive minimum")
		}
		if d.MaxDuration != 0 && d.MaxDuration < d.Duration {
			return newValidationError(d.ID, "max_duration", "maximum duration below nominal duration")
		}
	}
	if d.Interval.MinGap < 0 || d.Interval.Target < 0 || d.Interval.Tolerance < 0 {
		return newValidationError(d.ID, "interval", "interval durations must not be negative")
	}
	if len(d.Conflicting) > 0 && d.ConflictKind == ConflictNone {
		return newValidationError(d.ID, "conflict_kind", "conflict kind is required when conflicting errands are set")
	}
	if len(d.Conflicting) == 0 && d.ConflictKind != ConflictNone {
		return newValidationError(d.ID, "conflict_kind", "conflict kind set without conflicting errands")
	}
	for _, id := range d.Complementary {
		if id == d.ID {
			return newValidationError(d.ID, "complementary", "definition cannot complement itself")
		}
	}
	for _, id := range d.Conflicting {
		if id == d.ID {
			return newValidationError(d.ID, "conflicting", "definition cannot conflict with itself")
		}
	}
	return nil
}
