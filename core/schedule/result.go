package schedule

import (
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// UnschedulableItem is an occurrence no placement or cascade could fit. The
// reason names the constraint the user could relax: widen the window, change
// the access type, or loosen the spacing.
type UnschedulableItem struct {
	Instance model.ErrandInstance
	Reason   BlockReason
}

// SkippedDefinition records a definition rejected before placement, either
// by validation or by recurrence expansion.
type SkippedDefinition struct {
	DefinitionID string
	Err          error
}

// Stats summarises one planning pass.
type Stats struct {
	Placed        int
	Unschedulable int
	Skipped       int
	Cascades      int
	CascadeWins   int
	Elapsed       time.Duration
}

// Result is the outcome of one planning pass. Placed is ordered by start
// time; re-running the same inputs yields an identical result.
type Result struct {
	RunID         string
	Horizon       model.Horizon
	Placed        []model.ErrandInstance
	Unschedulable []UnschedulableItem
	Skipped       []SkippedDefinition
	Stats         Stats
}
