package events

import (
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// PlacementEvent is published for each instance committed during a pass.
// Cascaded is true when the slot was won by displacing neighbours; Displaced
// then lists the instances that moved.
type PlacementEvent struct {
	RunID     string
	Instance  model.ErrandInstance
	Cascaded  bool
	Displaced []string
}

// UnschedulableEvent is published when neither placement nor cascade found a
// slot for an occurrence.
type UnschedulableEvent struct {
	RunID      string
	InstanceID string
	Definition string
	Date       time.Time
	Reason     string
}
