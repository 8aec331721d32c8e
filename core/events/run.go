package events

import "time"

// RunEvent is published once per completed planning pass.
type RunEvent struct {
	RunID         string
	Placed        int
	Unschedulable int
	Skipped       int
	Cascades      int
	Elapsed       time.Duration
}
