package estimate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationForFallsBackWithoutSamples(t *testing.T) {
	e := NewHistoryEngine(0)
	if got := e.DurationFor("walk-dog", 30*time.Minute); got != 30*time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestDurationForBlendsTowardObserved(t *testing.T) {
	e := NewHistoryEngine(0)
	for i := 0; i < 5; i++ {
		e.RecordCompletion("walk-dog", Observation{
			ActualDuration:  60 * time.Minute,
			PlannedDuration: 30 * time.Minute,
		})
	}
	// 5 pseudo-samples at 30min against 5 observed at 60min.
	if got := e.DurationFor("walk-dog", 30*time.Minute); got != 45*time.Minute {
		t.Fatalf("expected 45m blend, got %v", got)
	}
	// Other definitions are unaffected.
	if got := e.DurationFor("groceries", 20*time.Minute); got != 20*time.Minute {
		t.Fatalf("expected untouched fallback, got %v", got)
	}
}

func TestTravelBiasSignedError(t *testing.T) {
	e := NewHistoryEngine(0)
	for i := 0; i < 3; i++ {
		e.RecordCompletion("groceries", Observation{
			ActualTravel:  15 * time.Minute,
			PlannedTravel: 10 * time.Minute,
		})
	}
	e.RecordCompletion("pharmacy", Observation{
		ActualTravel:  5 * time.Minute,
		PlannedTravel: 10 * time.Minute,
	})

	assert.Equal(t, 5*time.Minute, e.TravelBias("groceries"))
	assert.Equal(t, -5*time.Minute, e.TravelBias("pharmacy"))
	assert.Equal(t, time.Duration(0), e.TravelBias("unknown"))
}

func TestRecordActualPartialUpdates(t *testing.T) {
	e := NewHistoryEngine(0)

	e.RecordActual("walk-dog", FieldDuration, 50*time.Minute)
	if got := e.DurationFor("walk-dog", 20*time.Minute); got == 20*time.Minute {
		t.Fatal("duration report should shift the estimate")
	}

	// A raw travel report has no planned counterpart to measure error against.
	e.RecordActual("walk-dog", FieldTravel, 12*time.Minute)
	assert.Equal(t, time.Duration(0), e.TravelBias("walk-dog"))

	// Unreported and nonsense values are dropped.
	e.RecordActual("groceries", FieldDuration, 0)
	e.RecordActual("groceries", FieldDuration, -5*time.Minute)
	assert.Equal(t, 20*time.Minute, e.DurationFor("groceries", 20*time.Minute))
}

func TestWindowDropsOldestSamples(t *testing.T) {
	e := NewHistoryEngine(3)
	for i := 0; i < 3; i++ {
		e.RecordActual("walk-dog", FieldDuration, 10*time.Minute)
	}
	for i := 0; i < 3; i++ {
		e.RecordActual("walk-dog", FieldDuration, 40*time.Minute)
	}
	// Only the last three samples survive: (20*5 + 40*3) / 8 = 27.5 -> 28.
	if got := e.DurationFor("walk-dog", 20*time.Minute); got != 28*time.Minute {
		t.Fatalf("expected windowed blend of 28m, got %v", got)
	}
}

func TestSnapshotStats(t *testing.T) {
	e := NewHistoryEngine(0)
	e.RecordCompletion("errand-a", Observation{
		ActualDuration:  20 * time.Minute,
		PlannedDuration: 25 * time.Minute,
		ActualTravel:    12 * time.Minute,
		PlannedTravel:   10 * time.Minute,
	})
	e.RecordCompletion("errand-a", Observation{
		ActualDuration:  40 * time.Minute,
		PlannedDuration: 25 * time.Minute,
		ActualTravel:    8 * time.Minute,
		PlannedTravel:   10 * time.Minute,
	})
	for i := 1; i <= 10; i++ {
		e.RecordActual("errand-b", FieldDuration, time.Duration(i)*10*time.Minute)
	}

	snap := e.Snapshot()
	require.Len(t, snap, 2)

	a := snap[0]
	require.Equal(t, "errand-a", a.DefinitionID)
	assert.Equal(t, 2, a.Samples)
	assert.InDelta(t, 30, a.MeanDurationMin, 1e-9)
	assert.InDelta(t, math.Sqrt(200), a.StdevDurationMin, 1e-9)
	assert.InDelta(t, 10, a.MeanAbsErrorMin, 1e-9)
	assert.InDelta(t, 0, a.TravelBiasMin, 1e-9)

	b := snap[1]
	require.Equal(t, "errand-b", b.DefinitionID)
	assert.Equal(t, 10, b.Samples)
	assert.InDelta(t, 55, b.MeanDurationMin, 1e-9)
	assert.InDelta(t, 90, b.P90DurationMin, 1e-9)
}
