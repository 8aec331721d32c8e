package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// State is the committed timeline: the ordered sequence of placed instances.
// It is the single source of truth; the ledger is a derived view kept in
// lockstep by the planner. Snapshots are plain value copies so speculative
// cascade branches can be dropped without undo bookkeeping.
type State struct {
	instances []model.ErrandInstance
	byID      map[string]int
}

// NewState returns an empty timeline.
func NewState() *State {
	return &State{byID: make(map[string]int)}
}

// Len returns the number of committed instances.
func (s *State) Len() int { return len(s.instances) }

// Insert commits an instance, keeping the sequence ordered by start time
// with the instance ID as tie-break.
func (s *State) Insert(inst model.ErrandInstance) {
	idx := sort.Search(len(s.instances), func(i int) bool {
		o := s.instances[i]
		if !o.Start.Equal(inst.Start) {
			return o.Start.After(inst.Start)
		}
		return o.ID > inst.ID
	})
	s.instances = append(s.instances, model.ErrandInstance{})
	copy(s.instances[idx+1:], s.instances[idx:])
	s.instances[idx] = inst
	s.reindex(idx)
}

// Remove takes an instance out of the timeline.
func (s *State) Remove(id string) (model.ErrandInstance, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return model.ErrandInstance{}, false
	}
	inst := s.instances[idx]
	s.instances = append(s.instances[:idx], s.instances[idx+1:]...)
	delete(s.byID, id)
	s.reindex(idx)
	return inst, true
}

// Get looks an instance up by ID.
func (s *State) Get(id string) (model.ErrandInstance, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return model.ErrandInstance{}, false
	}
	return s.instances[idx], true
}

// UpdateTravel rewrites the derived travel segment of a committed instance,
// used when a new neighbour changes where its journey starts.
func (s *State) UpdateTravel(id string, seg model.TravelSegment) bool {
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	s.instances[idx].Travel = seg
	return true
}

// Instances returns the ordered timeline. The slice is a copy.
func (s *State) Instances() []model.ErrandInstance {
	out := make([]model.ErrandInstance, len(s.instances))
	copy(out, s.instances)
	return out
}

// ByDefinition returns the committed occurrences of one definition, in
// start order.
func (s *State) ByDefinition(defID string) []model.ErrandInstance {
	var out []model.ErrandInstance
	for _, inst := range s.instances {
		if inst.DefinitionID == defID {
			out = append(out, inst)
		}
	}
	return out
}

// Snapshot returns an independent copy for speculative work.
func (s *State) Snapshot() *State {
	c := &State{
		instances: append([]model.ErrandInstance(nil), s.instances...),
		byID:      make(map[string]int, len(s.byID)),
	}
	for id, idx := range s.byID {
		c.byID[id] = idx
	}
	return c
}

// Restore overwrites this state with a snapshot taken earlier.
func (s *State) Restore(snap *State) {
	s.instances = append(s.instances[:0], snap.instances...)
	s.byID = make(map[string]int, len(snap.byID))
	for id, idx := range snap.byID {
		s.byID[id] = idx
	}
}

// Equal reports whether two states hold identical timelines.
func (s *State) Equal(other *State) bool {
	if len(s.instances) != len(other.instances) {
		return false
	}
	for i := range s.instances {
		a, b := s.instances[i], other.instances[i]
		if a.ID != b.ID || !a.Start.Equal(b.Start) || !a.End.Equal(b.End) ||
			a.Location != b.Location || a.Travel != b.Travel {
			return false
		}
	}
	return true
}

// Verify checks the committed-timeline invariants: no travel-widened
// overlap, window containment, and exact spacing between occurrences of one
// definition. Tests lean on it after every scenario.
func (s *State) Verify() error {
	for i := 0; i < len(s.instances); i++ {
		for j := i + 1; j < len(s.instances); j++ {
			if s.instances[i].Overlaps(s.instances[j]) {
				return fmt.Errorf("instances %s and %s overlap", s.instances[i].ID, s.instances[j].ID)
			}
		}
	}

	byDef := make(map[string][]model.ErrandInstance)
	for _, inst := range s.instances {
		if inst.Def == nil {
			return fmt.Errorf("instance %s lost its definition reference", inst.ID)
		}
		if !windowWithTolerance(inst) {
			return fmt.Errorf("instance %s placed outside its window", inst.ID)
		}
		byDef[inst.DefinitionID] = append(byDef[inst.DefinitionID], inst)
	}

	defIDs := make([]string, 0, len(byDef))
	for id := range byDef {
		defIDs = append(defIDs, id)
	}
	sort.Strings(defIDs)
	for _, defID := range defIDs {
		occ := byDef[defID]
		if len(occ) < 2 {
			continue
		}
		gap := effectiveMinGap(occ[0].Def.Interval)
		if gap == 0 {
			continue
		}
		for k := 1; k < len(occ); k++ {
			if occ[k].Start.Sub(occ[k-1].Start) < gap {
				return fmt.Errorf("instances %s and %s closer than the %s minimum gap",
					occ[k-1].ID, occ[k].ID, gap)
			}
		}
	}
	return nil
}

func (s *State) reindex(from int) {
	for i := from; i < len(s.instances); i++ {
		s.byID[s.instances[i].ID] = i
	}
}

// windowWithTolerance checks containment in the definition window widened
// by the interval tolerance on the flexible edges.
func windowWithTolerance(inst model.ErrandInstance) bool {
	ws, we := inst.Def.Window.On(inst.Date)
	startTol, endTol := edgeTolerances(inst.Def)
	return !inst.Start.Before(ws.Add(-startTol)) && !inst.End.After(we.Add(endTol))
}

// edgeTolerances says how far each window edge may stretch. With no explicit
// flex flags the interval tolerance widens both edges; with flags set it
// widens only the flagged ones.
func edgeTolerances(def *model.ErrandDefinition) (time.Duration, time.Duration) {
	tol := def.Interval.Tolerance
	if tol == 0 {
		return 0, 0
	}
	if !def.FlexStart && !def.FlexEnd {
		return tol, tol
	}
	var start, end time.Duration
	if def.FlexStart {
		start = tol
	}
	if def.FlexEnd {
		end = tol
	}
	return start, end
}

// effectiveMinGap is the hard spacing floor: the explicit minimum gap, or
// the target spacing minus tolerance when only a target range is given.
func effectiveMinGap(iv model.IntervalRange) time.Duration {
	if iv.MinGap > 0 {
		return iv.MinGap
	}
	if iv.Target > 0 && iv.Target > iv.Tolerance {
		return iv.Target - iv.Tolerance
	}
	return 0
}
