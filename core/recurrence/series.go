package recurrence

import (
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// Series yields the candidate dates of one definition within a horizon.
// Eager series carry the full date list up front. Lazy series derive each
// candidate from where the previous occurrence was committed, so callers
// must feed the committed start back into Next.
type Series struct {
	defID   string
	horizon model.Horizon

	eager []time.Time
	idx   int

	lazy      bool
	stride    time.Duration
	maxYields int
	yields    int
}

// DefinitionID returns the definition this series expands.
func (s *Series) DefinitionID() string { return s.defID }

// Lazy reports whether candidates depend on previous commitments.
func (s *Series) Lazy() bool { return s.lazy }

// Dates returns a copy of the eagerly expanded dates. Lazy series return nil.
func (s *Series) Dates() []time.Time {
	if s.lazy {
		return nil
	}
	out := make([]time.Time, len(s.eager))
	copy(out, s.eager)
	return out
}

// Next yields the next candidate date. For lazy series prev is the start
// time of the previously committed occurrence; a zero prev asks for the
// first candidate. Eager series ignore prev. The second return value is
// false once the series is exhausted for the horizon.
func (s *Series) Next(prev time.Time) (time.Time, bool) {
	if !s.lazy {
		if s.idx >= len(s.eager) {
			return time.Time{}, false
		}
		d := s.eager[s.idx]
		s.idx++
		return d, true
	}

	if s.yields >= s.maxYields {
		return time.Time{}, false
	}
	candidate, ok := s.lazyCandidate(prev)
	if !ok {
		return time.Time{}, false
	}
	s.yields++
	return candidate, true
}

// Reanchor recomputes the candidate that follows an occurrence at prev
// without consuming a yield. Callers use it when a committed occurrence
// moved after its follow-up was already derived. Eager series have fixed
// dates and always report false.
func (s *Series) Reanchor(prev time.Time) (time.Time, bool) {
	if !s.lazy {
		return time.Time{}, false
	}
	return s.lazyCandidate(prev)
}

func (s *Series) lazyCandidate(prev time.Time) (time.Time, bool) {
	var candidate time.Time
	if prev.IsZero() {
		candidate = s.horizon.Start
	} else {
		next := prev.Add(s.stride)
		candidate = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, s.horizon.Start.Location())
	}
	if candidate.Before(s.horizon.Start) {
		candidate = s.horizon.Start
	}
	if !candidate.Before(s.horizon.End()) {
		return time.Time{}, false
	}
	return candidate, true
}
