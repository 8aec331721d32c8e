package schedule

import (
	"errors"
	"fmt"
)

// ErrNoFeasibleSlot is the internal signal that placement found nothing.
// It triggers the cascade resolver and never reaches the caller; only
// Unschedulable items do.
var ErrNoFeasibleSlot = errors.New("no feasible slot")

// ErrPassCancelled is returned when a planning pass is aborted because its
// inputs went stale. No partial result escapes a cancelled pass.
var ErrPassCancelled = errors.New("planning pass cancelled")

// BlockReason tells the user which constraint to relax.
type BlockReason string

const (
	BlockTimeWindow BlockReason = "time-window conflict"
	BlockAccess     BlockReason = "access-type infeasibility"
	BlockSpacing    BlockReason = "interval-spacing conflict"
	BlockRelation   BlockReason = "errand-relation conflict"
	BlockCalendar   BlockReason = "calendar conflict"
)

// noSlotError carries the elimination tally of a failed placement so the
// blocking constraint can be classified. The filters run in order: raw time
// fit, then travel, then spacing, then declared relations. The first stage
// that eliminated every remaining candidate names the reason.
type noSlotError struct {
	intervals       int
	timeFeasible    int
	travelFeasible  int
	spacingFeasible int
}

func (e *noSlotError) Error() string {
	return fmt.Sprintf("no feasible slot (%d intervals, %d fit by time, %d by travel, %d by spacing)",
		e.intervals, e.timeFeasible, e.travelFeasible, e.spacingFeasible)
}

// Is lets errors.Is match the sentinel.
func (e *noSlotError) Is(target error) bool { return target == ErrNoFeasibleSlot }

// Reason classifies the dominant blocker.
func (e *noSlotError) Reason() BlockReason {
	if e.timeFeasible == 0 {
		return BlockTimeWindow
	}
	if e.travelFeasible == 0 {
		return BlockAccess
	}
	if e.spacingFeasible == 0 {
		return BlockSpacing
	}
	return BlockRelation
}
