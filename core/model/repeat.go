package model

import (
	"fmt"
	"time"
)

// RepeatKind names the recurrence shape of an errand definition.
type RepeatKind int

const (
	RepeatNone RepeatKind = iota
	RepeatDaily
	RepeatEveryNDays
	RepeatWeekly
	RepeatWeeklyOnDays
	RepeatBiweeklyOnDays
	RepeatMonthly
	RepeatMonthlyOnDays
	RepeatYearly
	RepeatYearlyOnDays
)

// String returns the configuration name of the repeat kind.
func (k RepeatKind) String() string {
	switch k {
	case RepeatNone:
		return "none"
	case RepeatDaily:
		return "daily"
	case RepeatEveryNDays:
		return "every-n-days"
	case RepeatWeekly:
		return "weekly"
	case RepeatWeeklyOnDays:
		return "weekly-on-days"
	case RepeatBiweeklyOnDays:
		return "biweekly-on-days"
	case RepeatMonthly:
		return "monthly"
	case RepeatMonthlyOnDays:
		return "monthly-on-days"
	case RepeatYearly:
		return "yearly"
	case RepeatYearlyOnDays:
		return "yearly-on-days"
	default:
		return "unknown"
	}
}

// ParseRepeatKind converts a configuration string into a RepeatKind.
func ParseRepeatKind(s string) (RepeatKind, error) {
	switch s {
	case "", "none", "once":
		return RepeatNone, nil
	case "daily":
		return RepeatDaily, nil
	case "every-n-days":
		return RepeatEveryNDays, nil
	case "weekly":
		return RepeatWeekly, nil
	case "weekly-on-days":
		return RepeatWeeklyOnDays, nil
	case "biweekly", "biweekly-on-days":
		return RepeatBiweeklyOnDays, nil
	case "monthly":
		return RepeatMonthly, nil
	case "monthly-on-days":
		return RepeatMonthlyOnDays, nil
	case "yearly":
		return RepeatYearly, nil
	case "yearly-on-days":
		return RepeatYearlyOnDays, nil
	default:
		return RepeatNone, fmt.Errorf("unknown repeat kind %q", s)
	}
}

// MonthDay pins a day inside a specific month for yearly rules.
type MonthDay struct {
	Month time.Month
	Day   int
}

// RepeatRule describes how occurrences of one definition recur. Only the
// fields relevant to Kind are consulted; the recurrence package rejects
// contradictory combinations when expanding.
type RepeatRule struct {
	Kind RepeatKind

	// EveryN is the day stride for RepeatEveryNDays.
	EveryN int

	// Weekdays lists the active days for on-days rules. For
	// RepeatBiweeklyOnDays it is the first week's set and WeekdaysAlt the
	// second week's, alternating from AnchorMonday.
	Weekdays     []time.Weekday
	WeekdaysAlt  []time.Weekday
	AnchorMonday time.Time

	// MonthDays lists days of month for RepeatMonthlyOnDays.
	MonthDays []int

	// YearDays lists month/day pairs for RepeatYearlyOnDays.
	YearDays []MonthDay
}

// Recurs reports whether the rule produces more than one occurrence.
func (r RepeatRule) Recurs() bool {
	return r.Kind != RepeatNone
}

// IntervalRange constrains spacing between consecutive occurrences of one
// definition. A zero value means no spacing constraint.
type IntervalRange struct {
	// Target is the preferred gap between occurrences. Rules without a fixed
	// day pattern derive their next candidate date from it.
	Target time.Duration

	// Tolerance allows the gap to flex around Target when slots are scarce.
	Tolerance time.Duration

	// MinGap is a hard lower bound between the start times of consecutive
	// occurrences. Placements violating it are rejected outright.
	MinGap time.Duration
}

// Zero reports whether no spacing constraint is configured.
func (i IntervalRange) Zero() bool {
	return i.Target == 0 && i.Tolerance == 0 && i.MinGap == 0
}
