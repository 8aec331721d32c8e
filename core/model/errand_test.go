package model

import (
	"errors"
	"testing"
	"time"
)

func validDefinition() ErrandDefinition {
	return ErrandDefinition{
		ID:       "walk-dog",
		Title:    "Walk the dog",
		Access:   AccessWalk,
		Duration: 30 * time.Minute,
		Window:   TimeWindow{Start: 8 * 60, End: 20 * 60},
		Location: LocationSpec{Kind: LocationExact, Coord: Coordinate{Lat: 48.85, Lon: 2.35}},
	}
}

func TestDefinitionValidateOK(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefinitionValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ErrandDefinition)
	}{
		{"missing id", func(d *ErrandDefinition) { d.ID = "" }},
		{"negative duration", func(d *ErrandDefinition) { d.Duration = -time.Minute }},
		{"inverted window", func(d *ErrandDefinition) { d.Window = TimeWindow{Start: 600, End: 480} }},
		{"window too small", func(d *ErrandDefinition) { d.Duration = 13 * time.Hour }},
		{"bad access", func(d *ErrandDefinition) { d.Access = AccessType(42) }},
		{"negative priority", func(d *ErrandDefinition) { d.Priority = -1 }},
		{"category without name", func(d *ErrandDefinition) {
			d.Location = LocationSpec{Kind: LocationCategory}
		}},
		{"bad coordinate", func(d *ErrandDefinition) {
			d.Location = LocationSpec{Kind: LocationExact, Coord: Coordinate{Lat: 99, Lon: 0}}
		}},
		{"flex without min", func(d *ErrandDefinition) { d.FlexDuration = true }},
		{"negative min gap", func(d *ErrandDefinition) { d.Interval.MinGap = -time.Hour }},
		{"conflict list without kind", func(d *ErrandDefinition) { d.Conflicting = []string{"market"} }},
		{"conflict kind without list", func(d *ErrandDefinition) { d.ConflictKind = ConflictTime }},
		{"self-complementary", func(d *ErrandDefinition) { d.Complementary = []string{"walk-dog"} }},
		{"self-conflicting", func(d *ErrandDefinition) {
			d.Conflicting = []string{"walk-dog"}
			d.ConflictKind = ConflictBoth
		}},
	}
	for _, tc := range cases {
		d := validDefinition()
		tc.mutate(&d)
		err := d.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected *ValidationError, got %T", tc.name, err)
		}
	}
}

func TestParseConflictKind(t *testing.T) {
	cases := map[string]ConflictKind{
		"":         ConflictNone,
		"time":     ConflictTime,
		"location": ConflictLocation,
		"both":     ConflictBoth,
	}
	for in, want := range cases {
		got, err := ParseConflictKind(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v %v", in, got, err)
		}
	}
	if _, err := ParseConflictKind("venue"); err == nil {
		t.Fatalf("expected an error for an unknown kind")
	}
	if !ConflictBoth.ExcludesDay() || !ConflictBoth.ExcludesVenue() {
		t.Fatalf("both must exclude day and venue")
	}
	if ConflictTime.ExcludesVenue() || ConflictLocation.ExcludesDay() {
		t.Fatalf("single-dimension kinds must not cross over")
	}
}

func TestEffectivePriorityDefault(t *testing.T) {
	d := ErrandDefinition{}
	if d.EffectivePriority() != DefaultPriority {
		t.Fatalf("expected default priority %d got %d", DefaultPriority, d.EffectivePriority())
	}
	d.Priority = 5
	if d.EffectivePriority() != 5 {
		t.Fatalf("expected 5 got %d", d.EffectivePriority())
	}
}

func TestShortestDuration(t *testing.T) {
	d := validDefinition()
	if d.ShortestDuration() != 30*time.Minute {
		t.Fatalf("expected nominal duration")
	}
	d.FlexDuration = true
	d.MinDuration = 15 * time.Minute
	if d.ShortestDuration() != 15*time.Minute {
		t.Fatalf("expected min duration")
	}
}

func TestInstanceOverlapsIncludesTravel(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a := ErrandInstance{
		Start:  day.Add(10 * time.Hour),
		End:    day.Add(11 * time.Hour),
		Travel: TravelSegment{Duration: 20 * time.Minute},
	}
	b := ErrandInstance{
		Start: day.Add(9*time.Hour + 30*time.Minute),
		End:   day.Add(9*time.Hour + 50*time.Minute),
	}
	if !a.Overlaps(b) {
		t.Fatalf("travel lead-in should collide with preceding instance")
	}
	b.End = day.Add(9*time.Hour + 40*time.Minute)
	if a.Overlaps(b) {
		t.Fatalf("instances no longer touch")
	}
}

func TestWindowOn(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	w := TimeWindow{Start: 9 * 60, End: 17 * 60}
	s, e := w.On(day)
	if s.Hour() != 9 || e.Hour() != 17 {
		t.Fatalf("unexpected projection %v %v", s, e)
	}
}

func TestParseMinuteOfDay(t *testing.T) {
	m, err := ParseMinuteOfDay("08:30")
	if err != nil || m != 510 {
		t.Fatalf("got %v %v", m, err)
	}
	if _, err := ParseMinuteOfDay("25:00"); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestDistanceKm(t *testing.T) {
	paris := Coordinate{Lat: 48.8566, Lon: 2.3522}
	lyon := Coordinate{Lat: 45.7640, Lon: 4.8357}
	d := paris.DistanceKm(lyon)
	if d < 380 || d > 420 {
		t.Fatalf("Paris-Lyon distance out of range: %v", d)
	}
	if paris.DistanceKm(paris) != 0 {
		t.Fatalf("distance to self must be zero")
	}
}
