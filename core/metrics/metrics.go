package metrics

import (
	"time"
)

// RunSummary represents one completed planning pass to be recorded.
type RunSummary struct {
	RunID         string
	HorizonStart  time.Time
	HorizonDays   int
	Placed        int
	Unschedulable int
	Skipped       int
	Cascades      int
	CascadeWins   int
	Elapsed       time.Duration
	Time          time.Time
}

// MetricsSink records planning results for observability purposes.
type MetricsSink interface {
	RecordRunSummary(run RunSummary) error
}

// PlacementRecord is a per-instance commit event.
type PlacementRecord struct {
	RunID        string
	InstanceID   string
	DefinitionID string
	Category     string
	Access       string
	Date         time.Time
	Start        time.Time
	End          time.Time
	Travel       time.Duration
	TravelKm     float64
	Transfers    int
	Cascaded     bool
	Time         time.Time
}

// PlacementRecorder records committed placements.
type PlacementRecorder interface {
	RecordPlacements(recs []PlacementRecord) error
}

// UnschedulableRecord captures an occurrence that found no slot.
type UnschedulableRecord struct {
	RunID        string
	InstanceID   string
	DefinitionID string
	Date         time.Time
	Reason       string
	Time         time.Time
}

// UnschedulableRecorder records occurrences that found no slot.
type UnschedulableRecorder interface {
	RecordUnschedulable(recs []UnschedulableRecord) error
}

// TriggerEvent records a replan trigger reaching the app.
type TriggerEvent struct {
	Source string
	Time   time.Time
}

// TriggerRecorder records replan triggers.
type TriggerRecorder interface {
	RecordTrigger(ev TriggerEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRunSummary(RunSummary) error { return nil }

func (NopSink) RecordPlacements([]PlacementRecord) error        { return nil }
func (NopSink) RecordUnschedulable([]UnschedulableRecord) error { return nil }
func (NopSink) RecordTrigger(TriggerEvent) error                { return nil }
