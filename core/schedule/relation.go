package schedule

import (
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// relationFilter is the per-placement view of a definition's declared
// relations, precomputed against the occurrences already on the timeline.
// Relations only constrain against committed partners: whichever related
// errand the queue order places first anchors the others.
type relationFilter struct {
	// dayOK is false when the instance's own date is ruled out wholesale,
	// either by a time conflict sitting on it or by a same-day requirement
	// whose partners all landed elsewhere.
	dayOK bool

	// notBefore is the earliest admissible start when ordered partners are
	// already committed on the same day. Zero means unconstrained.
	notBefore time.Time

	// blockedCoords are venues occupied by location-conflicting partners.
	blockedCoords []model.Coordinate

	// requiredCoords restricts candidates to venues partners already use.
	// Empty means unconstrained.
	requiredCoords []model.Coordinate
}

// newRelationFilter resolves the relations of inst.Def against st for the
// instance's date. It is read-only over st and safe to share with the
// concurrent interval fan-out.
func newRelationFilter(inst model.ErrandInstance, st *State) relationFilter {
	f := relationFilter{dayOK: true}
	def := inst.Def
	if def == nil || (len(def.Conflicting) == 0 && len(def.Complementary) == 0) {
		return f
	}

	for _, partnerID := range def.Conflicting {
		for _, p := range st.ByDefinition(partnerID) {
			if def.ConflictKind.ExcludesDay() && sameDay(p.Date, inst.Date) {
				f.dayOK = false
			}
			if def.ConflictKind.ExcludesVenue() && p.Location != (model.Coordinate{}) {
				f.blockedCoords = append(f.blockedCoords, p.Location)
			}
		}
	}

	if !def.SameDayRequired && !def.OrderRequired && !def.SameLocationRequired {
		return f
	}
	anchored, onDay := false, false
	for _, partnerID := range def.Complementary {
		for _, p := range st.ByDefinition(partnerID) {
			anchored = true
			if sameDay(p.Date, inst.Date) {
				onDay = true
				if def.OrderRequired && p.End.After(f.notBefore) {
					f.notBefore = p.End
				}
			}
			if def.SameLocationRequired && p.Location != (model.Coordinate{}) {
				f.requiredCoords = append(f.requiredCoords, p.Location)
			}
		}
	}
	if def.SameDayRequired && anchored && !onDay {
		f.dayOK = false
	}
	return f
}

// allows reports whether a candidate slot survives the relation filter.
func (f relationFilter) allows(start time.Time, coord model.Coordinate) bool {
	if !f.dayOK {
		return false
	}
	if !f.notBefore.IsZero() && start.Before(f.notBefore) {
		return false
	}
	for _, c := range f.blockedCoords {
		if coord == c {
			return false
		}
	}
	if len(f.requiredCoords) > 0 && coord != (model.Coordinate{}) {
		match := false
		for _, c := range f.requiredCoords {
			if coord == c {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
