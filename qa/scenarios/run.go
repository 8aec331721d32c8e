package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
	"github.com/kilianp07/errandplan/core/recurrence"
	"github.com/kilianp07/errandplan/core/schedule"
	"github.com/kilianp07/errandplan/core/travel"
)

// RunScenario plans one scenario end to end on the static travel estimator
// and checks the outcome against its expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	horizon, err := sc.Horizon()
	if err != nil {
		t.Fatalf("horizon: %v", err)
	}
	defs, err := sc.Definitions()
	if err != nil {
		t.Fatalf("definitions: %v", err)
	}
	busy, err := sc.BusyEvents()
	if err != nil {
		t.Fatalf("busy events: %v", err)
	}
	ledCfg, err := sc.LedgerConfig()
	if err != nil {
		t.Fatalf("ledger config: %v", err)
	}

	provider := travel.NewStatic()
	resolver := travel.NewStaticResolver(sc.PlaceList(), provider)
	search, err := schedule.NewSearch(travel.NewMemo(provider), resolver, sc.Home.ToModel(), schedule.PlacementConfig{}, logger.Nop{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	cascade, err := schedule.NewResolver(search, schedule.CascadeConfig{}, logger.Nop{})
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	planner, err := schedule.NewPlanner(recurrence.NewExpander(logger.Nop{}), search, cascade, ledCfg, logger.Nop{})
	if err != nil {
		t.Fatalf("planner: %v", err)
	}

	res, err := planner.Run(context.Background(), schedule.PlanRequest{
		Definitions: defs,
		Horizon:     horizon,
		Busy:        busy,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Placed) != sc.Expected.Placed {
		t.Errorf("scenario %s expected %d placed, got %d", sc.Name, sc.Expected.Placed, len(res.Placed))
	}
	counts := make(map[string]int)
	for _, inst := range res.Placed {
		counts[inst.DefinitionID]++
	}
	for defID, want := range sc.Expected.Counts {
		if got := counts[defID]; got != want {
			t.Errorf("scenario %s expected %d placements of %s, got %d", sc.Name, want, defID, got)
		}
	}

	if len(res.Unschedulable) != len(sc.Expected.Unschedulable) {
		t.Errorf("scenario %s expected %d unschedulable, got %d", sc.Name, len(sc.Expected.Unschedulable), len(res.Unschedulable))
	}
	for _, want := range sc.Expected.Unschedulable {
		if !hasUnschedulable(res.Unschedulable, want) {
			t.Errorf("scenario %s missing unschedulable %s (%s)", sc.Name, want.DefinitionID, want.Reason)
		}
	}

	if res.Stats.CascadeWins != sc.Expected.CascadeWins {
		t.Errorf("scenario %s expected %d cascade wins, got %d", sc.Name, sc.Expected.CascadeWins, res.Stats.CascadeWins)
	}

	for _, check := range sc.Expected.Checks {
		runCheck(t, sc.Name, res.Placed, check)
	}
}

func hasUnschedulable(items []schedule.UnschedulableItem, want UnschedDef) bool {
	for _, it := range items {
		if it.Instance.DefinitionID != want.DefinitionID {
			continue
		}
		if want.Reason == "" || string(it.Reason) == want.Reason {
			return true
		}
	}
	return false
}

// runCheck applies one CheckDef to every placed occurrence of its
// definition. Scenarios run in UTC, so minute-of-day comparisons are safe.
func runCheck(t *testing.T, name string, placed []model.ErrandInstance, check CheckDef) {
	t.Helper()
	matched := 0
	for _, inst := range placed {
		if inst.DefinitionID != check.Definition {
			continue
		}
		matched++
		if check.EarliestStart != "" {
			lo, err := model.ParseMinuteOfDay(check.EarliestStart)
			if err != nil {
				t.Fatalf("check %s earliest_start: %v", check.Definition, err)
			}
			if minuteOf(inst.Start) < int(lo) {
				t.Errorf("scenario %s: %s starts %s, before %s", name, inst.ID, inst.Start.Format("15:04"), check.EarliestStart)
			}
		}
		if check.LatestEnd != "" {
			hi, err := model.ParseMinuteOfDay(check.LatestEnd)
			if err != nil {
				t.Fatalf("check %s latest_end: %v", check.Definition, err)
			}
			if minuteOf(inst.End) > int(hi) {
				t.Errorf("scenario %s: %s ends %s, after %s", name, inst.ID, inst.End.Format("15:04"), check.LatestEnd)
			}
		}
		if check.Location != "" && inst.LocationName != check.Location {
			t.Errorf("scenario %s: %s placed at %q, expected %q", name, inst.ID, inst.LocationName, check.Location)
		}
	}
	if matched == 0 {
		t.Errorf("scenario %s: check on %s matched no placed occurrence", name, check.Definition)
	}
}

func minuteOf(ts time.Time) int {
	return ts.Hour()*60 + ts.Minute()
}
