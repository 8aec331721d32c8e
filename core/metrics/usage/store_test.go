package usage

import (
	"testing"
	"time"
)

func TestMemoryStore_Aggregation(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Now())
	if err := s.Add(Record{Category: "grocery", Date: d, PlannedMin: 45, TravelMin: 10, Occurrences: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Record{Category: "grocery", Date: d.Add(2 * time.Hour), PlannedMin: 30, TravelMin: 5, Occurrences: 1}); err != nil {
		t.Fatalf("add2: %v", err)
	}
	recs, err := s.Query("grocery", d, d)
	if err != nil || len(recs) != 1 {
		t.Fatalf("query: %v len=%d", err, len(recs))
	}
	if recs[0].PlannedMin != 75 {
		t.Fatalf("expected 75 got %f", recs[0].PlannedMin)
	}
	if recs[0].Occurrences != 2 {
		t.Fatalf("expected 2 occurrences got %d", recs[0].Occurrences)
	}
}

func TestMemoryStore_Categories(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Now())
	for _, c := range []string{"pets", "grocery"} {
		if err := s.Add(Record{Category: c, Date: d, Occurrences: 1}); err != nil {
			t.Fatalf("add %s: %v", c, err)
		}
	}
	cats, err := s.Categories()
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "grocery" || cats[1] != "pets" {
		t.Fatalf("expected sorted categories, got %v", cats)
	}
}

func TestRecordCalculations(t *testing.T) {
	r := Record{PlannedMin: 40, TravelMin: 10, TravelKm: 5}
	if r.TravelShare() != 0.2 {
		t.Fatalf("share")
	}
	if r.Footprint(10) != 50 {
		t.Fatalf("footprint")
	}
}
