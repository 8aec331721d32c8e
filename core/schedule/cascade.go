package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/errandplan/core/ledger"
	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
)

// CascadeConfig bounds the displacement search.
type CascadeConfig struct {
	// DepthBudget is how many displacement hops a chain may take.
	DepthBudget int
	// MaxNeighbors caps the displacement candidates tried per hop.
	MaxNeighbors int
}

func (c CascadeConfig) withDefaults() CascadeConfig {
	if c.DepthBudget <= 0 {
		c.DepthBudget = 2
	}
	if c.MaxNeighbors <= 0 {
		c.MaxNeighbors = 4
	}
	return c
}

// CascadeOutcome reports a displacement attempt. On success State and Ledger
// are the new pass views, with the whole chain committed; the caller swaps
// them in atomically. On failure the live views are untouched.
type CascadeOutcome struct {
	Placed    bool
	State     *State
	Ledger    *ledger.Ledger
	Displaced []string
	Reason    BlockReason
}

// Resolver makes room for an instance by speculatively re-placing committed
// neighbours, bounded in depth and fan-out. All exploration happens on
// snapshots; a failed cascade leaves the pass exactly as it was.
type Resolver struct {
	search *Search
	cfg    CascadeConfig
	log    logger.Logger
}

// NewResolver builds a cascade resolver on top of a placement search.
func NewResolver(search *Search, cfg CascadeConfig, log logger.Logger) (*Resolver, error) {
	if search == nil {
		return nil, fmt.Errorf("cascade resolver needs a placement search")
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Resolver{search: search, cfg: cfg.withDefaults(), log: log}, nil
}

// Resolve tries to place inst after displacing neighbours. reason is the
// classification of the placement failure that triggered the cascade; it is
// carried through when the cascade fails too.
func (r *Resolver) Resolve(ctx context.Context, inst model.ErrandInstance, st *State, led *ledger.Ledger, reason BlockReason) (CascadeOutcome, error) {
	specState := st.Snapshot()
	specLedger := led.Clone()

	placed, displaced, err := r.resolveDepth(ctx, inst, specState, specLedger, r.cfg.DepthBudget)
	if err != nil {
		return CascadeOutcome{}, err
	}
	if !placed {
		return CascadeOutcome{Placed: false, Reason: reason}, nil
	}
	r.log.Infof("cascade placed %s after displacing %d neighbour(s)", inst.ID, len(displaced))
	return CascadeOutcome{Placed: true, State: specState, Ledger: specLedger, Displaced: displaced}, nil
}

// resolveDepth places inst into st/led by displacing one neighbour per hop,
// recursing when the displaced neighbour itself needs room. st and led are
// speculative copies owned by this call tree; each branch snapshots before
// mutating and restores on failure.
func (r *Resolver) resolveDepth(ctx context.Context, inst model.ErrandInstance, st *State, led *ledger.Ledger, depth int) (bool, []string, error) {
	if depth <= 0 {
		return false, nil, nil
	}
	if err := ctx.Err(); err != nil {
		return false, nil, ErrPassCancelled
	}

	prio := inst.Def.EffectivePriority()
	for _, neighbourID := range r.constrainingNeighbours(inst, st, led) {
		n, ok := st.Get(neighbourID)
		if !ok {
			continue
		}
		if n.Def.EffectivePriority() > prio {
			continue
		}
		if n.Status == model.StatusConfirmed {
			continue
		}

		snapState := st.Snapshot()
		snapLedger := led.Clone()

		st.Remove(neighbourID)
		if err := led.Release(neighbourID); err != nil {
			st.Restore(snapState)
			return false, nil, err
		}

		// The target goes in first. Relocating the neighbour first would let
		// it re-take the very slot the target needs, since its old slot is
		// usually its own best one.
		placement, err := r.search.Place(ctx, inst, st, led)
		if err != nil {
			st.Restore(snapState)
			led.Restore(snapLedger)
			if errors.Is(err, ErrNoFeasibleSlot) {
				continue
			}
			return false, nil, err
		}
		if err := commitPlacement(st, led, placement); err != nil {
			st.Restore(snapState)
			led.Restore(snapLedger)
			return false, nil, err
		}

		moved, extra, err := r.relocate(ctx, n, st, led, depth)
		if err != nil {
			st.Restore(snapState)
			led.Restore(snapLedger)
			return false, nil, err
		}
		if moved {
			return true, append([]string{neighbourID}, extra...), nil
		}

		st.Restore(snapState)
		led.Restore(snapLedger)
	}
	return false, nil, nil
}

// relocate finds the displaced neighbour a new home, recursing into deeper
// displacement when a plain re-placement fails.
func (r *Resolver) relocate(ctx context.Context, n model.ErrandInstance, st *State, led *ledger.Ledger, depth int) (bool, []string, error) {
	fresh := n
	fresh.Start, fresh.End = time.Time{}, time.Time{}
	fresh.Travel = model.TravelSegment{}
	fresh.Status = model.StatusPending
	if fresh.Def.Location.Open() {
		fresh.Location = model.Coordinate{}
		fresh.LocationName = ""
	}

	placement, err := r.search.Place(ctx, fresh, st, led)
	if err == nil {
		return true, nil, commitPlacement(st, led, placement)
	}
	if !errors.Is(err, ErrNoFeasibleSlot) {
		return false, nil, err
	}
	return r.resolveDepth(ctx, fresh, st, led, depth-1)
}

// constrainingNeighbours lists the committed instances pinning the edges of
// the intervals the target would most like, widest interval first. The
// order is total, so equal-depth chains resolve the same way every run.
func (r *Resolver) constrainingNeighbours(inst model.ErrandInstance, st *State, led *ledger.Ledger) []string {
	def := inst.Def
	ws, we := def.Window.On(inst.Date)
	startTol, endTol := edgeTolerances(def)
	lo, hi := ws.Add(-startTol), we.Add(endTol)
	ivs := led.Overlapping(lo, hi)

	idx := make([]int, len(ivs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := ivs[idx[a]].Span(), ivs[idx[b]].Span()
		if sa != sb {
			return sa > sb
		}
		return ivs[idx[a]].Start.Before(ivs[idx[b]].Start)
	})

	seen := make(map[string]struct{})
	var out []string
	push := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		if len(out) < r.cfg.MaxNeighbors {
			out = append(out, id)
		}
	}
	for _, i := range idx {
		push(ivs[i].From.InstanceID)
		push(ivs[i].To.InstanceID)
	}
	// A solidly booked window leaves no free intervals to read edges from.
	// Fall back to the committed instances overlapping it, in start order.
	for _, other := range st.Instances() {
		if other.OccupiedFrom().Before(hi) && other.End.After(lo) {
			push(other.ID)
		}
	}
	return out
}
