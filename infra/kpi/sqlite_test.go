package kpi

import (
	"testing"
	"time"

	core "github.com/kilianp07/errandplan/core/metrics/usage"
)

func TestSQLiteStoreAccumulates(t *testing.T) {
	store, err := NewSQLiteStore("file:kpi.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	day := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	if err := store.Add(core.Record{Category: "food", Date: day, PlannedMin: 30, TravelMin: 10, TravelKm: 4, Occurrences: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Same category and day folds into one aggregate regardless of clock time.
	if err := store.Add(core.Record{Category: "food", Date: day.Add(5 * time.Hour), PlannedMin: 45, TravelKm: 2, Occurrences: 1, Unschedulable: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	recs, err := store.Query("food", day, day)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(recs))
	}
	got := recs[0]
	if got.PlannedMin != 75 || got.TravelMin != 10 || got.TravelKm != 6 {
		t.Fatalf("unexpected aggregate: %+v", got)
	}
	if got.Occurrences != 2 || got.Unschedulable != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if !got.Date.Equal(core.Day(day)) {
		t.Fatalf("expected day-aligned date, got %v", got.Date)
	}
}

func TestSQLiteStoreQueryRange(t *testing.T) {
	store, err := NewSQLiteStore("file:kpi2.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		rec := core.Record{Category: "health", Date: base.AddDate(0, 0, i), PlannedMin: 20, Occurrences: 1}
		if err := store.Add(rec); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	recs, err := store.Query("health", base.AddDate(0, 0, 1), base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 days, got %d", len(recs))
	}
	if !recs[0].Date.Before(recs[1].Date) {
		t.Fatal("expected records ordered by day")
	}
	if recs, _ := store.Query("other", base, base.AddDate(0, 0, 4)); len(recs) != 0 {
		t.Fatalf("expected no records for unknown category, got %d", len(recs))
	}
}

func TestSQLiteStoreCategories(t *testing.T) {
	store, err := NewSQLiteStore("file:kpi3.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, c := range []string{"pets", "food", "pets"} {
		if err := store.Add(core.Record{Category: c, Date: day, Occurrences: 1}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	cats, err := store.Categories()
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "food" || cats[1] != "pets" {
		t.Fatalf("unexpected categories: %v", cats)
	}
}
