package runlog

import (
	"context"
	"time"
)

// RunRecord captures one planning pass and its outcome.
type RunRecord struct {
	RunID         string               `json:"run_id"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	HorizonStart  time.Time            `json:"horizon_start"`
	HorizonDays   int                  `json:"horizon_days"`
	Placed        []PlacedEntry        `json:"placed"`
	Unschedulable []UnschedulableEntry `json:"unschedulable,omitempty"`
	Skipped       []SkippedEntry       `json:"skipped,omitempty"`
	Cascades      int                  `json:"cascades"`
	CascadeWins   int                  `json:"cascade_wins"`
}

// PlacedEntry mirrors one committed instance for logging purposes.
type PlacedEntry struct {
	InstanceID   string    `json:"instance_id"`
	DefinitionID string    `json:"definition_id"`
	Title        string    `json:"title,omitempty"`
	Category     string    `json:"category,omitempty"`
	Date         time.Time `json:"date"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Location     string    `json:"location,omitempty"`
	Lat          float64   `json:"lat,omitempty"`
	Lon          float64   `json:"lon,omitempty"`
	Access       string    `json:"access,omitempty"`
	TravelMin    float64   `json:"travel_min,omitempty"`
	TravelKm     float64   `json:"travel_km,omitempty"`
	Cascaded     bool      `json:"cascaded,omitempty"`
}

// UnschedulableEntry mirrors one occurrence without a slot.
type UnschedulableEntry struct {
	InstanceID   string    `json:"instance_id"`
	DefinitionID string    `json:"definition_id"`
	Date         time.Time `json:"date"`
	Reason       string    `json:"reason"`
}

// SkippedEntry mirrors a definition rejected before placement.
type SkippedEntry struct {
	DefinitionID string `json:"definition_id"`
	Error        string `json:"error"`
}

// Query defines filters for retrieving run records.
type Query struct {
	Start        time.Time
	End          time.Time
	DefinitionID string
	Limit        int
}

// mentions reports whether the record touches the definition anywhere:
// placed, unschedulable or skipped.
func (r RunRecord) mentions(defID string) bool {
	for _, p := range r.Placed {
		if p.DefinitionID == defID {
			return true
		}
	}
	for _, u := range r.Unschedulable {
		if u.DefinitionID == defID {
			return true
		}
	}
	for _, s := range r.Skipped {
		if s.DefinitionID == defID {
			return true
		}
	}
	return false
}

// matches applies the time and definition filters.
func (r RunRecord) matches(q Query) bool {
	if !q.Start.IsZero() && r.StartedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.StartedAt.After(q.End) {
		return false
	}
	if q.DefinitionID != "" && !r.mentions(q.DefinitionID) {
		return false
	}
	return true
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q Query) ([]RunRecord, error)
	Close() error
}
