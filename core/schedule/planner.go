package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/errandplan/core/events"
	"github.com/kilianp07/errandplan/core/ledger"
	"github.com/kilianp07/errandplan/core/logger"
	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/kilianp07/errandplan/core/model"
	"github.com/kilianp07/errandplan/core/recurrence"
	"github.com/kilianp07/errandplan/core/runlog"
	"github.com/kilianp07/errandplan/internal/eventbus"
)

// PlanRequest carries everything one planning pass works on. The pass never
// reads shared state, so a stale pass can be thrown away wholesale.
type PlanRequest struct {
	Definitions []*model.ErrandDefinition
	Horizon     model.Horizon
	Busy        []model.BusyEvent
	// Confirmed instances survive from earlier runs. They pre-seed the
	// timeline and are never displaced.
	Confirmed []model.ErrandInstance
}

// Planner turns errand definitions into a committed schedule. One Planner
// serves many passes; each Run works on pass-local state.
type Planner struct {
	expander  *recurrence.Expander
	search    *Search
	cascade   *Resolver
	ledgerCfg ledger.Config
	logger    logger.Logger
	sink      coremetrics.MetricsSink
	bus       eventbus.EventBus
	store     runlog.Store
}

// NewPlanner creates a new planner. The search is required; a nil cascade
// resolver disables displacement and fails straight to unschedulable.
func NewPlanner(expander *recurrence.Expander, search *Search, cascade *Resolver, ledgerCfg ledger.Config, log logger.Logger) (*Planner, error) {
	if search == nil {
		return nil, fmt.Errorf("schedule: nil search provided to NewPlanner")
	}
	if log == nil {
		log = logger.Nop{}
	}
	if expander == nil {
		expander = recurrence.NewExpander(log)
	}
	return &Planner{
		expander:  expander,
		search:    search,
		cascade:   cascade,
		ledgerCfg: ledgerCfg,
		logger:    log,
	}, nil
}

// SetMetricsSink configures the sink run summaries are recorded to.
func (p *Planner) SetMetricsSink(sink coremetrics.MetricsSink) { p.sink = sink }

// SetBus configures the event bus pass events are published on.
func (p *Planner) SetBus(bus eventbus.EventBus) { p.bus = bus }

// SetRunStore configures the store used to persist run records.
func (p *Planner) SetRunStore(store runlog.Store) { p.store = store }

// Close releases resources held by the planner.
func (p *Planner) Close() error {
	if p.bus != nil {
		p.bus.Close()
	}
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Run executes one full planning pass. Identical requests yield identical
// results apart from the run ID. A cancelled context aborts between
// instances and returns ErrPassCancelled with no partial result.
func (p *Planner) Run(ctx context.Context, req PlanRequest) (*Result, error) {
	started := time.Now()
	if err := req.Horizon.Validate(); err != nil {
		return nil, fmt.Errorf("invalid horizon: %w", err)
	}

	res := &Result{RunID: uuid.NewString(), Horizon: req.Horizon}

	defs := p.validDefinitions(req.Definitions, res)
	series, queue := p.expandSeries(defs, req, res)

	led, err := ledger.Build(req.Horizon, req.Busy, p.ledgerCfg)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	st := p.seedConfirmed(req, led, res)

	sortQueue(queue)
	cascaded := make(map[string][]string)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, ErrPassCancelled
		}
		inst := queue[0]
		queue = queue[1:]
		if _, dup := st.Get(inst.ID); dup {
			continue
		}

		placement, err := p.search.Place(ctx, inst, st, led)
		switch {
		case err == nil:
			if cerr := commitPlacement(st, led, placement); cerr != nil {
				return nil, cerr
			}
			queue = p.afterCommit(res, placement.Instance, nil, series, queue)

		case errors.Is(err, ErrNoFeasibleSlot):
			reason := blockReason(err)
			outcome, cerr := p.tryCascade(ctx, inst, st, led, reason, res)
			if cerr != nil {
				return nil, cerr
			}
			if outcome.Placed {
				st, led = outcome.State, outcome.Ledger
				committed, _ := st.Get(inst.ID)
				cascaded[inst.ID] = outcome.Displaced
				queue = p.afterCommit(res, committed, outcome.Displaced, series, queue)
				queue = p.afterRelocation(res, st, outcome.Displaced, series, queue)
				continue
			}
			p.markUnschedulable(res, inst, reason)

		default:
			return nil, fmt.Errorf("placement failed for %s: %w", inst.ID, err)
		}
	}

	if err := st.Verify(); err != nil {
		return nil, fmt.Errorf("schedule invariant violated: %w", err)
	}

	res.Placed = st.Instances()
	res.Stats.Unschedulable = len(res.Unschedulable)
	res.Stats.Skipped = len(res.Skipped)
	res.Stats.Elapsed = time.Since(started)
	passDuration.Observe(res.Stats.Elapsed.Seconds())
	p.logger.Infof("pass %s: placed %d, unschedulable %d, skipped %d in %s",
		res.RunID, res.Stats.Placed, res.Stats.Unschedulable, res.Stats.Skipped, res.Stats.Elapsed)

	if p.bus != nil {
		p.bus.Publish(events.RunEvent{
			RunID:         res.RunID,
			Placed:        res.Stats.Placed,
			Unschedulable: res.Stats.Unschedulable,
			Skipped:       res.Stats.Skipped,
			Cascades:      res.Stats.Cascades,
			Elapsed:       res.Stats.Elapsed,
		})
	}
	p.recordMetrics(res, cascaded)
	if p.store != nil {
		rec := buildRunRecord(res, started, time.Now(), cascaded)
		if err := p.store.Append(context.Background(), rec); err != nil {
			p.logger.Errorf("run log append failed: %v", err)
		}
	}
	return res, nil
}

// validDefinitions filters out definitions that fail validation, recording
// them as skipped. The surviving set is sorted by ID so every later step
// sees a stable order.
func (p *Planner) validDefinitions(in []*model.ErrandDefinition, res *Result) []*model.ErrandDefinition {
	defs := make([]*model.ErrandDefinition, 0, len(in))
	for _, def := range in {
		if def == nil {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })

	valid := defs[:0]
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			p.logger.Warnf("definition %s skipped: %v", def.ID, err)
			res.Skipped = append(res.Skipped, SkippedDefinition{DefinitionID: def.ID, Err: err})
			continue
		}
		valid = append(valid, def)
	}
	return valid
}

// expandSeries builds the occurrence series per definition and the initial
// queue. Eager series contribute all their dates up front; lazy ones only
// their first, the rest arrive as commits happen.
func (p *Planner) expandSeries(defs []*model.ErrandDefinition, req PlanRequest, res *Result) (map[string]*recurrence.Series, []model.ErrandInstance) {
	series := make(map[string]*recurrence.Series, len(defs))
	var queue []model.ErrandInstance
	for _, def := range defs {
		sr, err := p.expander.Series(def, req.Horizon)
		if err != nil {
			p.logger.Warnf("definition %s skipped: %v", def.ID, err)
			res.Skipped = append(res.Skipped, SkippedDefinition{DefinitionID: def.ID, Err: err})
			continue
		}
		series[def.ID] = sr
		if sr.Lazy() {
			if d, ok := sr.Next(lastConfirmedStart(req.Confirmed, def.ID)); ok {
				queue = append(queue, newInstance(def, d))
			}
			continue
		}
		for _, d := range sr.Dates() {
			queue = append(queue, newInstance(def, d))
		}
	}
	return series, queue
}

// seedConfirmed reserves the confirmed instances on the fresh ledger. A
// confirmed instance the calendar no longer has room for is kept out of the
// pass and surfaced as unschedulable, so the collision is the user's call
// rather than a silent drop; the planner never double-books around it.
func (p *Planner) seedConfirmed(req PlanRequest, led *ledger.Ledger, res *Result) *State {
	st := NewState()
	confirmed := append([]model.ErrandInstance(nil), req.Confirmed...)
	sort.Slice(confirmed, func(i, j int) bool {
		if !confirmed[i].Start.Equal(confirmed[j].Start) {
			return confirmed[i].Start.Before(confirmed[j].Start)
		}
		return confirmed[i].ID < confirmed[j].ID
	})
	for _, inst := range confirmed {
		if !req.Horizon.Contains(inst.Start) {
			continue
		}
		if err := led.Reserve(inst); err != nil {
			p.logger.Warnf("confirmed instance %s no longer fits the calendar: %v", inst.ID, err)
			p.markUnschedulable(res, inst, BlockCalendar)
			continue
		}
		st.Insert(inst)
	}
	return st
}

// tryCascade runs the displacement resolver when one is configured.
func (p *Planner) tryCascade(ctx context.Context, inst model.ErrandInstance, st *State, led *ledger.Ledger, reason BlockReason, res *Result) (CascadeOutcome, error) {
	if p.cascade == nil {
		return CascadeOutcome{Placed: false, Reason: reason}, nil
	}
	cascadeAttempts.Inc()
	res.Stats.Cascades++
	outcome, err := p.cascade.Resolve(ctx, inst, st, led, reason)
	if err != nil {
		if errors.Is(err, ErrPassCancelled) {
			return CascadeOutcome{}, ErrPassCancelled
		}
		return CascadeOutcome{}, fmt.Errorf("cascade failed for %s: %w", inst.ID, err)
	}
	if outcome.Placed {
		cascadeWins.Inc()
		res.Stats.CascadeWins++
	}
	return outcome, nil
}

// afterCommit updates counters, publishes the placement and re-polls a lazy
// series now that its previous occurrence has a committed start.
func (p *Planner) afterCommit(res *Result, committed model.ErrandInstance, displaced []string, series map[string]*recurrence.Series, queue []model.ErrandInstance) []model.ErrandInstance {
	res.Stats.Placed++
	instancesPlaced.WithLabelValues(categoryLabel(committed.Def)).Inc()
	p.logger.Debugf("placed %s at %s", committed.ID, committed.Start.Format(time.RFC3339))
	if p.bus != nil {
		p.bus.Publish(events.PlacementEvent{
			RunID:     res.RunID,
			Instance:  committed,
			Cascaded:  len(displaced) > 0,
			Displaced: displaced,
		})
	}
	if sr := series[committed.DefinitionID]; sr != nil && sr.Lazy() {
		if d, ok := sr.Next(committed.Start); ok {
			queue = append(queue, newInstance(committed.Def, d))
			sortQueue(queue)
		}
	}
	return queue
}

// afterRelocation refreshes the pass views of neighbours a cascade moved:
// each relocated instance gets a placement event with its new slot, and a
// lazy follow-up still waiting in the queue is re-derived from the new
// start, so the interval chain tracks where the occurrence actually landed.
func (p *Planner) afterRelocation(res *Result, st *State, displaced []string, series map[string]*recurrence.Series, queue []model.ErrandInstance) []model.ErrandInstance {
	resorted := false
	for _, id := range displaced {
		moved, ok := st.Get(id)
		if !ok {
			continue
		}
		p.logger.Debugf("relocated %s to %s", moved.ID, moved.Start.Format(time.RFC3339))
		if p.bus != nil {
			p.bus.Publish(events.PlacementEvent{
				RunID:    res.RunID,
				Instance: moved,
				Cascaded: true,
			})
		}
		sr := series[moved.DefinitionID]
		if sr == nil || !sr.Lazy() {
			continue
		}
		qi := pendingIndex(queue, moved.DefinitionID)
		if qi < 0 {
			continue
		}
		next, ok := sr.Reanchor(moved.Start)
		switch {
		case !ok:
			queue = append(queue[:qi], queue[qi+1:]...)
		case !sameDay(queue[qi].Date, next):
			queue[qi] = newInstance(moved.Def, next)
			resorted = true
		}
	}
	if resorted {
		sortQueue(queue)
	}
	return queue
}

// pendingIndex finds the queued occurrence of a definition. Lazy series
// keep at most one occurrence pending at a time.
func pendingIndex(queue []model.ErrandInstance, defID string) int {
	for i := range queue {
		if queue[i].DefinitionID == defID {
			return i
		}
	}
	return -1
}

func (p *Planner) markUnschedulable(res *Result, inst model.ErrandInstance, reason BlockReason) {
	inst.Status = model.StatusUnschedulable
	res.Unschedulable = append(res.Unschedulable, UnschedulableItem{Instance: inst, Reason: reason})
	instancesUnschedulable.WithLabelValues(string(reason)).Inc()
	p.logger.Warnf("no slot for %s on %s: %s", inst.DefinitionID, inst.Date.Format("2006-01-02"), reason)
	if p.bus != nil {
		p.bus.Publish(events.UnschedulableEvent{
			RunID:      res.RunID,
			InstanceID: inst.ID,
			Definition: inst.DefinitionID,
			Date:       inst.Date,
			Reason:     string(reason),
		})
	}
}

// recordMetrics persists pass metrics if a sink is configured.
func (p *Planner) recordMetrics(res *Result, cascaded map[string][]string) {
	if p.sink == nil {
		return
	}
	now := time.Now()
	run := coremetrics.RunSummary{
		RunID:         res.RunID,
		HorizonStart:  res.Horizon.Start,
		HorizonDays:   res.Horizon.Days,
		Placed:        res.Stats.Placed,
		Unschedulable: res.Stats.Unschedulable,
		Skipped:       res.Stats.Skipped,
		Cascades:      res.Stats.Cascades,
		CascadeWins:   res.Stats.CascadeWins,
		Elapsed:       res.Stats.Elapsed,
		Time:          now,
	}
	if err := p.sink.RecordRunSummary(run); err != nil {
		p.logger.Errorf("metrics error: %v", err)
	}
	if pr, ok := p.sink.(coremetrics.PlacementRecorder); ok {
		recs := make([]coremetrics.PlacementRecord, 0, len(res.Placed))
		for _, inst := range res.Placed {
			_, wasCascaded := cascaded[inst.ID]
			recs = append(recs, coremetrics.PlacementRecord{
				RunID:        res.RunID,
				InstanceID:   inst.ID,
				DefinitionID: inst.DefinitionID,
				Category:     categoryLabel(inst.Def),
				Access:       inst.Travel.Access.String(),
				Date:         inst.Date,
				Start:        inst.Start,
				End:          inst.End,
				Travel:       inst.Travel.Duration,
				TravelKm:     inst.Travel.DistanceKm,
				Transfers:    inst.Travel.Transfers,
				Cascaded:     wasCascaded,
				Time:         now,
			})
		}
		if err := pr.RecordPlacements(recs); err != nil {
			p.logger.Errorf("placement metrics error: %v", err)
		}
	}
	if ur, ok := p.sink.(coremetrics.UnschedulableRecorder); ok {
		recs := make([]coremetrics.UnschedulableRecord, 0, len(res.Unschedulable))
		for _, item := range res.Unschedulable {
			recs = append(recs, coremetrics.UnschedulableRecord{
				RunID:        res.RunID,
				InstanceID:   item.Instance.ID,
				DefinitionID: item.Instance.DefinitionID,
				Date:         item.Instance.Date,
				Reason:       string(item.Reason),
				Time:         now,
			})
		}
		if err := ur.RecordUnschedulable(recs); err != nil {
			p.logger.Errorf("unschedulable metrics error: %v", err)
		}
	}
}

// buildRunRecord converts a pass result into its run log form.
func buildRunRecord(res *Result, started, finished time.Time, cascaded map[string][]string) runlog.RunRecord {
	rec := runlog.RunRecord{
		RunID:        res.RunID,
		StartedAt:    started,
		FinishedAt:   finished,
		HorizonStart: res.Horizon.Start,
		HorizonDays:  res.Horizon.Days,
		Cascades:     res.Stats.Cascades,
		CascadeWins:  res.Stats.CascadeWins,
	}
	for _, inst := range res.Placed {
		_, wasCascaded := cascaded[inst.ID]
		entry := runlog.PlacedEntry{
			InstanceID:   inst.ID,
			DefinitionID: inst.DefinitionID,
			Date:         inst.Date,
			Start:        inst.Start,
			End:          inst.End,
			Location:     inst.LocationName,
			Lat:          inst.Location.Lat,
			Lon:          inst.Location.Lon,
			Access:       inst.Travel.Access.String(),
			TravelMin:    inst.Travel.Duration.Minutes(),
			TravelKm:     inst.Travel.DistanceKm,
			Cascaded:     wasCascaded,
		}
		if inst.Def != nil {
			entry.Title = inst.Def.Title
			entry.Category = inst.Def.Category
		}
		rec.Placed = append(rec.Placed, entry)
	}
	for _, item := range res.Unschedulable {
		rec.Unschedulable = append(rec.Unschedulable, runlog.UnschedulableEntry{
			InstanceID:   item.Instance.ID,
			DefinitionID: item.Instance.DefinitionID,
			Date:         item.Instance.Date,
			Reason:       string(item.Reason),
		})
	}
	for _, sk := range res.Skipped {
		rec.Skipped = append(rec.Skipped, runlog.SkippedEntry{
			DefinitionID: sk.DefinitionID,
			Error:        sk.Err.Error(),
		})
	}
	return rec
}

// newInstance builds the pending occurrence of def on date. Instance IDs are
// deterministic slugs so identical inputs produce identical plans.
func newInstance(def *model.ErrandDefinition, date time.Time) model.ErrandInstance {
	return model.ErrandInstance{
		ID:           instanceID(def.ID, date),
		DefinitionID: def.ID,
		Def:          def,
		Date:         date,
		Status:       model.StatusPending,
	}
}

func instanceID(defID string, date time.Time) string {
	return defID + "-" + date.Format("2006-01-02")
}

// lastConfirmedStart finds the latest confirmed occurrence of the
// definition, seeding interval chains across runs.
func lastConfirmedStart(confirmed []model.ErrandInstance, defID string) time.Time {
	var last time.Time
	for _, inst := range confirmed {
		if inst.DefinitionID == defID && inst.Start.After(last) {
			last = inst.Start
		}
	}
	return last
}

// sortQueue orders pending instances by the pass total order: priority desc,
// window start asc, duration asc, definition ID asc, date asc.
func sortQueue(queue []model.ErrandInstance) {
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if pa, pb := a.Def.EffectivePriority(), b.Def.EffectivePriority(); pa != pb {
			return pa > pb
		}
		if a.Def.Window.Start != b.Def.Window.Start {
			return a.Def.Window.Start < b.Def.Window.Start
		}
		if a.Def.Duration != b.Def.Duration {
			return a.Def.Duration < b.Def.Duration
		}
		if a.DefinitionID != b.DefinitionID {
			return a.DefinitionID < b.DefinitionID
		}
		return a.Date.Before(b.Date)
	})
}

// blockReason extracts the classification from a failed placement.
func blockReason(err error) BlockReason {
	var nse *noSlotError
	if errors.As(err, &nse) {
		return nse.Reason()
	}
	return BlockTimeWindow
}

func categoryLabel(def *model.ErrandDefinition) string {
	if def == nil || def.Category == "" {
		return "none"
	}
	return def.Category
}
