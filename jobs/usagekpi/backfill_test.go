package usagekpi

import (
	"testing"
	"time"

	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/kilianp07/errandplan/core/runlog"
)

func TestBackfill(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	history := []runlog.RunRecord{
		{
			RunID: "run-1",
			Placed: []runlog.PlacedEntry{
				{DefinitionID: "groceries", Category: "food", Date: day,
					Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 45*time.Minute),
					TravelMin: 12, TravelKm: 4},
				{DefinitionID: "pharmacy", Category: "health", Date: day,
					Start: day.Add(14 * time.Hour), End: day.Add(14*time.Hour + 15*time.Minute),
					TravelMin: 6, TravelKm: 2},
			},
		},
		{
			RunID: "run-2",
			Placed: []runlog.PlacedEntry{
				{DefinitionID: "groceries", Category: "food", Date: day,
					Start: day.Add(11 * time.Hour), End: day.Add(11*time.Hour + 30*time.Minute),
					TravelMin: 8, TravelKm: 3},
			},
			Unschedulable: []runlog.UnschedulableEntry{
				{DefinitionID: "vet", Date: day, Reason: "no free interval"},
			},
		},
	}

	store := usage.NewMemoryStore()
	cats := map[string]string{"vet": "pets"}
	if err := Backfill(store, history, cats); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	food, err := store.Query("food", day, day)
	if err != nil {
		t.Fatalf("query food: %v", err)
	}
	if len(food) != 1 {
		t.Fatalf("expected one food record, got %d", len(food))
	}
	if food[0].PlannedMin != 75 || food[0].TravelMin != 20 || food[0].TravelKm != 7 || food[0].Occurrences != 2 {
		t.Errorf("food aggregate off: %+v", food[0])
	}

	pets, err := store.Query("pets", day, day)
	if err != nil {
		t.Fatalf("query pets: %v", err)
	}
	if len(pets) != 1 || pets[0].Unschedulable != 1 {
		t.Errorf("pets aggregate off: %+v", pets)
	}

	categories, err := store.Categories()
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 3 {
		t.Errorf("expected food/health/pets, got %v", categories)
	}
}
