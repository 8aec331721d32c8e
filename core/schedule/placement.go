package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/errandplan/core/ledger"
	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
	"github.com/kilianp07/errandplan/core/travel"
)

// PlacementConfig bounds one placement attempt.
type PlacementConfig struct {
	// MaxCandidateIntervals caps how many free intervals a single placement
	// considers. Guarantees termination without timeouts.
	MaxCandidateIntervals int
}

func (c PlacementConfig) withDefaults() PlacementConfig {
	if c.MaxCandidateIntervals <= 0 {
		c.MaxCandidateIntervals = 64
	}
	return c
}

// Search finds the best feasible (time, location) pair for one instance
// against the current timeline. It never mutates state or ledger; committing
// is the planner's job.
type Search struct {
	provider travel.Provider
	resolver travel.Resolver
	home     model.Coordinate
	cfg      PlacementConfig
	log      logger.Logger
}

// NewSearch builds a placement search. The provider is required; the
// resolver only when open-location definitions are planned.
func NewSearch(provider travel.Provider, resolver travel.Resolver, home model.Coordinate, cfg PlacementConfig, log logger.Logger) (*Search, error) {
	if provider == nil {
		return nil, fmt.Errorf("placement search needs a travel provider")
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Search{provider: provider, resolver: resolver, home: home, cfg: cfg.withDefaults(), log: log}, nil
}

// Placement is a successful search outcome, ready to commit. When the chosen
// slot sits right before a committed instance, FollowerID and FollowerTravel
// carry the journey that instance must be rewritten with.
type Placement struct {
	Instance       model.ErrandInstance
	FollowerID     string
	FollowerTravel model.TravelSegment
}

// slotCandidate is one feasible (interval, location, time) triple.
type slotCandidate struct {
	ivIndex   int
	interval  ledger.FreeInterval
	start     time.Time
	end       time.Time
	coord     model.Coordinate
	locName   string
	travelIn  travel.Estimate
	travelOut travel.Estimate
	added     time.Duration
	transfers int
}

// intervalOutcome is the evaluation of a single free interval. Counters feed
// the blocking-reason classification when everything fails.
type intervalOutcome struct {
	timeOK    bool
	travelOK  bool
	spacingOK bool
	best      *slotCandidate
}

// Place runs the search. inst must carry its definition, date and ID; the
// returned placement carries the filled instance. Failure is reported as a
// *noSlotError matching ErrNoFeasibleSlot.
func (s *Search) Place(ctx context.Context, inst model.ErrandInstance, st *State, led *ledger.Ledger) (Placement, error) {
	def := inst.Def
	if def == nil {
		return Placement{}, fmt.Errorf("instance %s has no definition", inst.ID)
	}

	ws, we := def.Window.On(inst.Date)
	startTol, endTol := edgeTolerances(def)
	lo, hi := ws.Add(-startTol), we.Add(endTol)

	ivs := led.Overlapping(lo, hi)
	if len(ivs) > s.cfg.MaxCandidateIntervals {
		ivs = ivs[:s.cfg.MaxCandidateIntervals]
	}
	if len(ivs) == 0 {
		return Placement{}, &noSlotError{}
	}

	sameDef := st.ByDefinition(inst.DefinitionID)
	gap := effectiveMinGap(def.Interval)
	rel := newRelationFilter(inst, st)

	// Independent intervals are evaluated concurrently; each goroutine owns
	// one result slot so aggregation stays deterministic.
	outcomes := make([]intervalOutcome, len(ivs))
	var wg sync.WaitGroup
	for i := range ivs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = s.evalInterval(ctx, inst, ivs[i], i, lo, hi, st, sameDef, gap, rel)
		}(i)
	}
	wg.Wait()

	var (
		failure noSlotError
		best    *slotCandidate
	)
	failure.intervals = len(ivs)
	for i := range outcomes {
		o := outcomes[i]
		if o.timeOK {
			failure.timeFeasible++
		}
		if o.travelOK {
			failure.travelFeasible++
		}
		if o.spacingOK {
			failure.spacingFeasible++
		}
		if o.best == nil {
			continue
		}
		if best == nil || better(o.best, best) {
			best = o.best
		}
	}
	if best == nil {
		return Placement{}, &failure
	}

	placed := inst
	placed.Start = best.start
	placed.End = best.end
	placed.Location = best.coord
	if best.locName != "" {
		placed.LocationName = best.locName
	} else if def.Location.Name != "" {
		placed.LocationName = def.Location.Name
	}
	placed.Status = model.StatusPlaced
	placed.Travel = model.TravelSegment{
		Duration:   best.travelIn.Duration,
		Access:     def.Access,
		Transfers:  best.travelIn.Transfers,
		DistanceKm: best.travelIn.DistanceKm,
	}

	out := Placement{Instance: placed}
	if followerID := best.interval.To.InstanceID; followerID != "" {
		if follower, ok := st.Get(followerID); ok {
			out.FollowerID = followerID
			out.FollowerTravel = model.TravelSegment{
				Duration:   best.travelOut.Duration,
				Access:     follower.Def.Access,
				Transfers:  best.travelOut.Transfers,
				DistanceKm: best.travelOut.DistanceKm,
			}
		}
	}
	return out, nil
}

// commitPlacement applies a successful search outcome: the instance enters
// the ledger and the state, and the follower's lead-in journey is rewritten
// when the new slot changed it.
func commitPlacement(st *State, led *ledger.Ledger, p Placement) error {
	if err := led.Reserve(p.Instance); err != nil {
		return err
	}
	st.Insert(p.Instance)
	if p.FollowerID != "" {
		st.UpdateTravel(p.FollowerID, p.FollowerTravel)
	}
	return nil
}

// better orders candidates: least added travel, then fewer transfers, then
// earlier start, then earlier interval. The order is total, so placement is
// deterministic.
func better(a, b *slotCandidate) bool {
	if a.added != b.added {
		return a.added < b.added
	}
	if a.transfers != b.transfers {
		return a.transfers < b.transfers
	}
	if !a.start.Equal(b.start) {
		return a.start.Before(b.start)
	}
	return a.ivIndex < b.ivIndex
}

func (s *Search) evalInterval(ctx context.Context, inst model.ErrandInstance, iv ledger.FreeInterval, ivIndex int, lo, hi time.Time, st *State, sameDef []model.ErrandInstance, gap time.Duration, rel relationFilter) intervalOutcome {
	def := inst.Def
	effLo := maxTime(iv.Start, lo)
	effHi := minTime(iv.End, hi)

	var out intervalOutcome
	if effHi.Sub(effLo) < def.ShortestDuration() {
		return out
	}
	out.timeOK = true

	switch def.Location.Kind {
	case model.LocationRemote:
		out.travelOK = true
		dur := def.Duration
		if available := effHi.Sub(effLo); available < dur {
			dur = available
		}
		none := travel.Estimate{Feasible: true}
		out.best, out.spacingOK = s.fitAt(def, iv, ivIndex, effLo, effLo.Add(dur), model.Coordinate{}, "", none, none, sameDef, gap, rel)
		return out
	case model.LocationExact, model.LocationPlace:
		targets := append([]model.Coordinate{def.Location.Coord}, def.Location.Alternatives...)
		for _, target := range targets {
			cand, travelOK, spacingOK := s.evalTarget(ctx, def, iv, ivIndex, effLo, effHi, st, target, "", sameDef, gap, rel)
			out.travelOK = out.travelOK || travelOK
			out.spacingOK = out.spacingOK || spacingOK
			if cand != nil && (out.best == nil || better(cand, out.best)) {
				out.best = cand
			}
		}
		return out
	case model.LocationCategory:
		return s.evalOpenLocation(ctx, def, iv, ivIndex, effLo, effHi, st, sameDef, gap, rel)
	default:
		return out
	}
}

// evalOpenLocation asks the resolver for reachable venues and keeps the
// nearest feasible one for this interval.
func (s *Search) evalOpenLocation(ctx context.Context, def *model.ErrandDefinition, iv ledger.FreeInterval, ivIndex int, effLo, effHi time.Time, st *State, sameDef []model.ErrandInstance, gap time.Duration, rel relationFilter) intervalOutcome {
	out := intervalOutcome{timeOK: true}
	if s.resolver == nil {
		s.log.Warnf("definition %s needs a location resolver, none configured", def.ID)
		return out
	}

	budget := iv.Span() - def.ShortestDuration()
	cands, err := s.resolver.Candidates(ctx, def.Location.Category, s.originCoord(iv.From), def.Access, budget)
	if err != nil {
		placementProviderErrors.Inc()
		s.log.Debugf("resolver degraded for %s: %v", def.ID, err)
		return out
	}
	for i := range cands {
		cand, travelOK, spacingOK := s.evalTarget(ctx, def, iv, ivIndex, effLo, effHi, st, cands[i].Coord, cands[i].Name, sameDef, gap, rel)
		out.travelOK = out.travelOK || travelOK
		out.spacingOK = out.spacingOK || spacingOK
		if cand != nil {
			// Resolver candidates arrive nearest first; the first fit is
			// this interval's best.
			out.best = cand
			return out
		}
	}
	return out
}

// evalTarget works out whether the errand fits this interval at one venue.
// The booleans report travel and spacing feasibility separately, so failed
// searches can tell an access problem from a spacing or relation one.
func (s *Search) evalTarget(ctx context.Context, def *model.ErrandDefinition, iv ledger.FreeInterval, ivIndex int, effLo, effHi time.Time, st *State, target model.Coordinate, locName string, sameDef []model.ErrandInstance, gap time.Duration, rel relationFilter) (*slotCandidate, bool, bool) {
	tin, err := s.provider.Estimate(ctx, travel.Query{
		Origin: s.originCoord(iv.From),
		Dest:   target,
		Access: def.Access,
		Depart: iv.Start,
	})
	if err != nil {
		placementProviderErrors.Inc()
		s.log.Debugf("travel provider degraded, candidate dropped: %v", err)
		return nil, false, false
	}
	if !tin.Feasible {
		return nil, false, false
	}

	tout, ok := s.travelOut(ctx, iv, def, target, st)
	if !ok {
		return nil, false, false
	}

	start := effLo
	if travelReady := iv.Start.Add(tin.Duration); travelReady.After(start) {
		start = travelReady
	}
	latestEnd := minTime(effHi, iv.End.Add(-tout.Duration))
	available := latestEnd.Sub(start)
	dur := def.Duration
	if available < dur {
		if !def.FlexDuration || available < def.MinDuration {
			return nil, false, false
		}
		dur = available
	}

	cand, spacingOK := s.fitAt(def, iv, ivIndex, start, start.Add(dur), target, locName, tin, tout, sameDef, gap, rel)
	return cand, true, spacingOK
}

// fitAt finalises a candidate at a concrete start. The spacing filter runs
// against committed occurrences of the same definition, the relation filter
// against committed occurrences of declared partners. The boolean reports
// whether the spacing stage passed, so a relation kill classifies apart.
func (s *Search) fitAt(def *model.ErrandDefinition, iv ledger.FreeInterval, ivIndex int, start, end time.Time, coord model.Coordinate, locName string, tin, tout travel.Estimate, sameDef []model.ErrandInstance, gap time.Duration, rel relationFilter) (*slotCandidate, bool) {
	if gap > 0 {
		for _, o := range sameDef {
			d := start.Sub(o.Start)
			if d < 0 {
				d = -d
			}
			if d < gap {
				return nil, false
			}
		}
	}
	if !rel.allows(start, coord) {
		return nil, true
	}
	return &slotCandidate{
		ivIndex:   ivIndex,
		interval:  iv,
		start:     start,
		end:       end,
		coord:     coord,
		locName:   locName,
		travelIn:  tin,
		travelOut: tout,
		added:     tin.Duration + tout.Duration,
		transfers: tin.Transfers + tout.Transfers,
	}, true
}

// travelOut estimates the journey out of the interval: to the next committed
// location, conservatively home across an opaque edge, or nothing at the end
// of the day.
func (s *Search) travelOut(ctx context.Context, iv ledger.FreeInterval, def *model.ErrandDefinition, target model.Coordinate, st *State) (travel.Estimate, bool) {
	switch iv.To.Kind {
	case ledger.RefDayEnd:
		return travel.Estimate{Feasible: true}, true
	case ledger.RefPlace:
		access := def.Access
		if iv.To.InstanceID != "" {
			access = followerAccess(st, iv.To.InstanceID, def.Access)
		}
		est, err := s.provider.Estimate(ctx, travel.Query{
			Origin: target,
			Dest:   iv.To.Coord,
			Access: access,
			Depart: iv.End,
		})
		if err != nil {
			placementProviderErrors.Inc()
			s.log.Debugf("travel provider degraded, candidate dropped: %v", err)
			return travel.Estimate{}, false
		}
		return est, est.Feasible
	case ledger.RefOpaque:
		est, err := s.provider.Estimate(ctx, travel.Query{
			Origin: target,
			Dest:   s.home,
			Access: def.Access,
			Depart: iv.End,
		})
		if err != nil {
			placementProviderErrors.Inc()
			return travel.Estimate{}, false
		}
		return est, est.Feasible
	default:
		return travel.Estimate{Feasible: true}, true
	}
}

// followerAccess resolves the access type of the committed instance the
// journey leads to, falling back to the new errand's own mode. The state
// lookup is read-only and safe during the concurrent fan-out: nothing
// commits while placements run.
func followerAccess(st *State, instanceID string, fallback model.AccessType) model.AccessType {
	if st == nil {
		return fallback
	}
	if inst, ok := st.Get(instanceID); ok && inst.Def != nil {
		return inst.Def.Access
	}
	return fallback
}

// originCoord maps a ledger edge to the coordinate journeys start from.
// Home and opaque contexts both resolve to the home position; the opaque
// case is the documented conservative charge.
func (s *Search) originCoord(ref ledger.Ref) model.Coordinate {
	if ref.Kind == ledger.RefPlace {
		return ref.Coord
	}
	return s.home
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
