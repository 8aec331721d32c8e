package runlog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRunRecord_JSON(t *testing.T) {
	rec := RunRecord{
		RunID:        "run-1",
		StartedAt:    time.Unix(0, 0),
		FinishedAt:   time.Unix(1, 0),
		HorizonStart: time.Unix(0, 0),
		HorizonDays:  7,
		Placed: []PlacedEntry{{
			InstanceID:   "walk-dog-2026-03-02",
			DefinitionID: "walk-dog",
			Date:         time.Unix(0, 0),
		}},
		Unschedulable: []UnschedulableEntry{{
			InstanceID:   "vet-2026-03-03",
			DefinitionID: "vet",
			Reason:       "time-window conflict",
		}},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	keys := []string{"run_id", "started_at", "finished_at", "horizon_start", "horizon_days", "placed", "unschedulable"}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
}

func TestRunRecord_Mentions(t *testing.T) {
	rec := RunRecord{
		Placed:        []PlacedEntry{{DefinitionID: "walk-dog"}},
		Unschedulable: []UnschedulableEntry{{DefinitionID: "vet"}},
		Skipped:       []SkippedEntry{{DefinitionID: "broken"}},
	}
	for _, id := range []string{"walk-dog", "vet", "broken"} {
		if !rec.mentions(id) {
			t.Errorf("expected mention of %s", id)
		}
	}
	if rec.mentions("absent") {
		t.Error("unexpected mention")
	}
}
