package schedule

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/errandplan/core/events"
	"github.com/kilianp07/errandplan/core/ledger"
	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/kilianp07/errandplan/core/model"
	"github.com/kilianp07/errandplan/core/recurrence"
	"github.com/kilianp07/errandplan/core/runlog"
	"github.com/kilianp07/errandplan/internal/eventbus"
)

type captureSink struct {
	mu      sync.Mutex
	runs    []coremetrics.RunSummary
	placed  []coremetrics.PlacementRecord
	unsched []coremetrics.UnschedulableRecord
}

var (
	_ coremetrics.MetricsSink           = (*captureSink)(nil)
	_ coremetrics.PlacementRecorder     = (*captureSink)(nil)
	_ coremetrics.UnschedulableRecorder = (*captureSink)(nil)
	_ runlog.Store                      = (*captureStore)(nil)
)

func (c *captureSink) RecordRunSummary(r coremetrics.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, r)
	return nil
}

func (c *captureSink) RecordPlacements(recs []coremetrics.PlacementRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.placed = append(c.placed, recs...)
	return nil
}

func (c *captureSink) RecordUnschedulable(recs []coremetrics.UnschedulableRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsched = append(c.unsched, recs...)
	return nil
}

type captureStore struct {
	records []runlog.RunRecord
	closed  bool
}

func (c *captureStore) Append(_ context.Context, rec runlog.RunRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func (c *captureStore) Query(context.Context, runlog.Query) ([]runlog.RunRecord, error) {
	return nil, nil
}

func (c *captureStore) Close() error { c.closed = true; return nil }

func newTestPlanner(t *testing.T, ledCfg ledger.Config, withCascade bool) *Planner {
	t.Helper()
	search := newTestSearch(t, nil)
	var resolver *Resolver
	if withCascade {
		resolver = newTestResolver(t, search, 0)
	}
	p, err := NewPlanner(nil, search, resolver, ledCfg, nil)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	return p
}

func TestPlannerPlacesDailyAndWeekly(t *testing.T) {
	walkDog := walkDef("walk-dog", 30*time.Minute, 7*60, 9*60, park)
	walkDog.Repeat = model.RepeatRule{Kind: model.RepeatDaily}
	walkDog.Priority = 4

	groceries := walkDef("groceries", 45*time.Minute, 9*60, 12*60, grocer)
	groceries.Repeat = model.RepeatRule{Kind: model.RepeatWeekly}

	var busy []model.BusyEvent
	for i := 0; i < 3; i++ {
		d := monday.AddDate(0, 0, i)
		busy = append(busy, model.BusyEvent{Title: "work", Start: at(d, 13, 0), End: at(d, 17, 0), Location: &office})
	}
	req := PlanRequest{
		Definitions: []*model.ErrandDefinition{groceries, walkDog},
		Horizon:     model.NewHorizon(monday, 3),
		Busy:        busy,
	}

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.Placed != 4 || res.Stats.Unschedulable != 0 || res.Stats.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}

	byID := make(map[string]model.ErrandInstance, len(res.Placed))
	for _, inst := range res.Placed {
		byID[inst.ID] = inst
		if !inst.InWindow() {
			t.Fatalf("%s placed outside its window: %s-%s", inst.ID, inst.Start, inst.End)
		}
	}
	for _, want := range []string{
		"walk-dog-2026-03-02", "walk-dog-2026-03-03", "walk-dog-2026-03-04",
		"groceries-2026-03-02",
	} {
		if _, ok := byID[want]; !ok {
			t.Fatalf("missing placement %s, got %v", want, res.Placed)
		}
	}

	// Identical inputs must yield an identical plan.
	again, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(res.Placed, again.Placed) {
		t.Fatalf("plan is not deterministic:\n%v\nvs\n%v", res.Placed, again.Placed)
	}
}

func TestPlannerLazyIntervalChain(t *testing.T) {
	plants := remoteDef("water-plants", 15*time.Minute, 7*60, 8*60)
	plants.Repeat = model.RepeatRule{Kind: model.RepeatEveryNDays, EveryN: 2}

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	res, err := p.Run(context.Background(), PlanRequest{
		Definitions: []*model.ErrandDefinition{plants},
		Horizon:     model.NewHorizon(monday, 5),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.Placed != 3 {
		t.Fatalf("expected 3 occurrences, got %d: %v", res.Stats.Placed, res.Placed)
	}
	for i, want := range []string{
		"water-plants-2026-03-02", "water-plants-2026-03-04", "water-plants-2026-03-06",
	} {
		if res.Placed[i].ID != want {
			t.Fatalf("occurrence %d: got %s want %s", i, res.Placed[i].ID, want)
		}
	}
}

func TestPlannerCascadeMakesRoom(t *testing.T) {
	alpha := remoteDef("alpha", 2*time.Hour, 7*60+30, 12*60)
	beta := remoteDef("beta", 2*time.Hour, 8*60, 10*60)

	p := newTestPlanner(t, ledger.Config{DayStart: 8 * 60, DayEnd: 12 * 60}, true)
	sink := &captureSink{}
	store := &captureStore{}
	bus := eventbus.NewBuffered(32)
	p.SetMetricsSink(sink)
	p.SetRunStore(store)
	p.SetBus(bus)
	sub := bus.Subscribe()

	res, err := p.Run(context.Background(), PlanRequest{
		Definitions: []*model.ErrandDefinition{alpha, beta},
		Horizon:     model.NewHorizon(monday, 1),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.Placed != 2 || res.Stats.Cascades != 1 || res.Stats.CascadeWins != 1 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}

	betaInst := res.Placed[0]
	alphaInst := res.Placed[1]
	if betaInst.DefinitionID != "beta" || !betaInst.Start.Equal(at(monday, 8, 0)) {
		t.Fatalf("beta misplaced: %+v", betaInst)
	}
	if alphaInst.DefinitionID != "alpha" || !alphaInst.Start.Equal(at(monday, 10, 0)) {
		t.Fatalf("alpha should have been pushed to 10:00: %+v", alphaInst)
	}

	if len(sink.runs) != 1 || sink.runs[0].RunID != res.RunID || sink.runs[0].Placed != 2 {
		t.Fatalf("run summary wrong: %+v", sink.runs)
	}
	cascadedByID := make(map[string]bool)
	for _, rec := range sink.placed {
		cascadedByID[rec.InstanceID] = rec.Cascaded
	}
	if !cascadedByID[betaInst.ID] || cascadedByID[alphaInst.ID] {
		t.Fatalf("cascade flags wrong: %v", cascadedByID)
	}

	if len(store.records) != 1 {
		t.Fatalf("expected one run record, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.RunID != res.RunID || rec.Cascades != 1 || rec.CascadeWins != 1 || len(rec.Placed) != 2 {
		t.Fatalf("run record wrong: %+v", rec)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !store.closed {
		t.Fatalf("close must reach the run store")
	}
	var placements []events.PlacementEvent
	var runEvents []events.RunEvent
	for e := range sub {
		switch ev := e.(type) {
		case events.PlacementEvent:
			placements = append(placements, ev)
		case events.RunEvent:
			runEvents = append(runEvents, ev)
		}
	}
	if len(placements) != 3 || len(runEvents) != 1 {
		t.Fatalf("expected 3 placement events and 1 run event, got %d/%d", len(placements), len(runEvents))
	}
	win := placements[1]
	if !win.Cascaded || !reflect.DeepEqual(win.Displaced, []string{alphaInst.ID}) {
		t.Fatalf("cascade event wrong: %+v", win)
	}
	// The displaced neighbour moved, so its placement is published again
	// with the slot it actually holds.
	moved := placements[2]
	if moved.Instance.ID != alphaInst.ID || !moved.Cascaded {
		t.Fatalf("expected a relocation event for alpha, got %+v", moved)
	}
	if !moved.Instance.Start.Equal(at(monday, 10, 0)) {
		t.Fatalf("relocation event carries a stale start: %s", moved.Instance.Start)
	}
}

func TestRelocationReanchorsLazyFollowUp(t *testing.T) {
	plants := remoteDef("water-plants", time.Hour, 8*60, 18*60)
	plants.Repeat = model.RepeatRule{Kind: model.RepeatEveryNDays}
	plants.Interval = model.IntervalRange{Target: 36 * time.Hour}

	sr, err := recurrence.NewExpander(nil).Series(plants, model.NewHorizon(monday, 5))
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if _, ok := sr.Next(time.Time{}); !ok {
		t.Fatalf("series exhausted at the first candidate")
	}
	// The follow-up was derived from a morning start: Tuesday.
	next, ok := sr.Next(at(monday, 8, 0))
	if !ok {
		t.Fatalf("series exhausted at the follow-up")
	}
	queue := []model.ErrandInstance{newInstance(plants, next)}
	if queue[0].ID != "water-plants-2026-03-03" {
		t.Fatalf("unexpected follow-up %s", queue[0].ID)
	}

	st := NewState()
	moved := newInstance(plants, monday)
	moved.Start = at(monday, 13, 0)
	moved.End = moved.Start.Add(time.Hour)
	moved.Status = model.StatusPlaced
	st.Insert(moved)

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	res := &Result{RunID: "run", Horizon: model.NewHorizon(monday, 5)}
	queue = p.afterRelocation(res, st, []string{moved.ID}, map[string]*recurrence.Series{plants.ID: sr}, queue)

	// An afternoon start pushes the 36h stride past Tuesday midnight.
	if len(queue) != 1 || queue[0].ID != "water-plants-2026-03-04" {
		t.Fatalf("follow-up must re-derive from the moved start: %+v", queue)
	}
}

func TestPlannerConfirmedStaysPut(t *testing.T) {
	dentist := remoteDef("dentist", 2*time.Hour, 8*60, 10*60)
	dentist.Priority = 1
	confirmed := newInstance(dentist, monday)
	confirmed.Start = at(monday, 8, 0)
	confirmed.End = at(monday, 10, 0)
	confirmed.Status = model.StatusConfirmed

	massage := remoteDef("massage", 2*time.Hour, 8*60, 10*60)
	massage.Priority = 5

	p := newTestPlanner(t, ledger.Config{DayStart: 8 * 60, DayEnd: 10 * 60}, true)
	res, err := p.Run(context.Background(), PlanRequest{
		Definitions: []*model.ErrandDefinition{massage},
		Horizon:     model.NewHorizon(monday, 1),
		Confirmed:   []model.ErrandInstance{confirmed},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Placed) != 1 || res.Placed[0].ID != confirmed.ID {
		t.Fatalf("confirmed instance lost: %v", res.Placed)
	}
	if res.Placed[0].Status != model.StatusConfirmed {
		t.Fatalf("confirmed status lost: %v", res.Placed[0].Status)
	}
	if res.Stats.Placed != 0 {
		t.Fatalf("seeding is not a placement: %+v", res.Stats)
	}
	if len(res.Unschedulable) != 1 || res.Unschedulable[0].Instance.DefinitionID != "massage" {
		t.Fatalf("massage should be unschedulable: %+v", res.Unschedulable)
	}
	if res.Stats.Cascades != 1 || res.Stats.CascadeWins != 0 {
		t.Fatalf("cascade should have been attempted and lost: %+v", res.Stats)
	}
}

func TestPlannerConfirmedCollisionSurfaces(t *testing.T) {
	dentist := remoteDef("dentist", 30*time.Minute, 8*60, 12*60)
	confirmed := newInstance(dentist, monday)
	confirmed.Start = at(monday, 9, 0)
	confirmed.End = at(monday, 9, 30)
	confirmed.Status = model.StatusConfirmed

	// A calendar event has since landed on the confirmed slot.
	busy := []model.BusyEvent{{Title: "offsite", Start: at(monday, 8, 0), End: at(monday, 10, 0)}}

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	sink := &captureSink{}
	p.SetMetricsSink(sink)
	res, err := p.Run(context.Background(), PlanRequest{
		Horizon:   model.NewHorizon(monday, 1),
		Busy:      busy,
		Confirmed: []model.ErrandInstance{confirmed},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Placed) != 0 {
		t.Fatalf("the colliding instance must not be double-booked: %v", res.Placed)
	}
	if len(res.Unschedulable) != 1 {
		t.Fatalf("the collision must be surfaced, got %+v", res.Unschedulable)
	}
	item := res.Unschedulable[0]
	if item.Instance.ID != confirmed.ID || item.Reason != BlockCalendar {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Instance.Status != model.StatusUnschedulable {
		t.Fatalf("status not updated: %v", item.Instance.Status)
	}
	if res.Stats.Unschedulable != 1 {
		t.Fatalf("stats miss the collision: %+v", res.Stats)
	}
	if len(sink.unsched) != 1 || sink.unsched[0].Reason != string(BlockCalendar) {
		t.Fatalf("sink record wrong: %+v", sink.unsched)
	}
}

func TestPlannerConfirmedDeduplicatesSeries(t *testing.T) {
	walkDog := remoteDef("walk-dog", 30*time.Minute, 7*60, 9*60)
	walkDog.Repeat = model.RepeatRule{Kind: model.RepeatDaily}
	confirmed := newInstance(walkDog, monday)
	confirmed.Start = at(monday, 7, 0)
	confirmed.End = at(monday, 7, 30)
	confirmed.Status = model.StatusConfirmed

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	res, err := p.Run(context.Background(), PlanRequest{
		Definitions: []*model.ErrandDefinition{walkDog},
		Horizon:     model.NewHorizon(monday, 2),
		Confirmed:   []model.ErrandInstance{confirmed},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Placed) != 2 {
		t.Fatalf("expected the confirmed Monday plus a fresh Tuesday, got %v", res.Placed)
	}
	if res.Stats.Placed != 1 {
		t.Fatalf("only Tuesday is newly placed: %+v", res.Stats)
	}
	if res.Placed[0].Status != model.StatusConfirmed || res.Placed[1].ID != "walk-dog-2026-03-03" {
		t.Fatalf("unexpected timeline: %v", res.Placed)
	}
}

func TestPlannerSkipsInvalidDefinition(t *testing.T) {
	bad := remoteDef("bad", 0, 7*60, 9*60)
	good := remoteDef("stretch", 20*time.Minute, 7*60, 9*60)

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	res, err := p.Run(context.Background(), PlanRequest{
		Definitions: []*model.ErrandDefinition{good, bad},
		Horizon:     model.NewHorizon(monday, 1),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stats.Skipped != 1 || res.Stats.Placed != 1 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
	if res.Skipped[0].DefinitionID != "bad" || res.Skipped[0].Err == nil {
		t.Fatalf("skip entry wrong: %+v", res.Skipped[0])
	}
}

func TestPlannerUnschedulableSurfacesReason(t *testing.T) {
	vaccine := walkDef("vaccine", 30*time.Minute, 9*60, 12*60, faraway)

	p := newTestPlanner(t, ledger.DefaultConfig(), true)
	sink := &captureSink{}
	p.SetMetricsSink(sink)

	res, err := p.Run(context.Background(), PlanRequest{
		Definitions: []*model.ErrandDefinition{vaccine},
		Horizon:     model.NewHorizon(monday, 1),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Unschedulable) != 1 {
		t.Fatalf("expected one unschedulable item: %+v", res)
	}
	item := res.Unschedulable[0]
	if item.Reason != BlockAccess {
		t.Fatalf("expected access reason, got %q", item.Reason)
	}
	if item.Instance.Status != model.StatusUnschedulable {
		t.Fatalf("status not updated: %v", item.Instance.Status)
	}
	if len(sink.unsched) != 1 || sink.unsched[0].Reason != string(BlockAccess) {
		t.Fatalf("sink record wrong: %+v", sink.unsched)
	}
}

func TestPlannerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	res, err := p.Run(ctx, PlanRequest{
		Definitions: []*model.ErrandDefinition{remoteDef("stretch", 20*time.Minute, 7*60, 9*60)},
		Horizon:     model.NewHorizon(monday, 1),
	})
	if !errors.Is(err, ErrPassCancelled) {
		t.Fatalf("expected pass cancellation, got %v", err)
	}
	if res != nil {
		t.Fatalf("no partial result may escape a cancelled pass")
	}
}

func TestPlannerRejectsInvalidHorizon(t *testing.T) {
	p := newTestPlanner(t, ledger.DefaultConfig(), false)
	if _, err := p.Run(context.Background(), PlanRequest{}); err == nil {
		t.Fatalf("zero horizon must be rejected")
	}
}
