package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/errandplan/core/model"
)

// Config bounds the plannable part of each day. Outside the span the ledger
// offers no free time at all.
type Config struct {
	DayStart model.MinuteOfDay
	DayEnd   model.MinuteOfDay
}

// DefaultConfig plans between 06:00 and 23:00.
func DefaultConfig() Config {
	return Config{DayStart: 6 * 60, DayEnd: 23 * 60}
}

func (c Config) withDefaults() Config {
	if c.DayStart == 0 && c.DayEnd == 0 {
		return DefaultConfig()
	}
	return c
}

// occupier is one span the user is not free during.
type occupier struct {
	start time.Time
	end   time.Time
	after Ref
}

// Ledger is the derived view of free time over a horizon. It owns its copy
// of the committed occurrences so speculative branches can clone and mutate
// it without touching the live pass.
type Ledger struct {
	cfg       Config
	horizon   model.Horizon
	busy      []occupier
	placed    map[string]model.ErrandInstance
	intervals []FreeInterval
}

// Build derives the ledger from calendar busy events. Ignorable events are
// dropped; unlocated ones block with an opaque context.
func Build(h model.Horizon, busy []model.BusyEvent, cfg Config) (*Ledger, error) {
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("building ledger: %w", err)
	}
	cfg = cfg.withDefaults()
	if cfg.DayEnd <= cfg.DayStart {
		return nil, fmt.Errorf("building ledger: day span %s-%s is empty", cfg.DayStart, cfg.DayEnd)
	}

	l := &Ledger{cfg: cfg, horizon: h, placed: make(map[string]model.ErrandInstance)}
	for _, b := range busy {
		if b.Ignorable || !b.End.After(b.Start) {
			continue
		}
		if !b.Start.Before(h.End()) || !b.End.After(h.Start) {
			continue
		}
		ref := Ref{Kind: RefOpaque}
		if b.Location != nil {
			ref = Ref{Kind: RefPlace, Coord: *b.Location}
		}
		l.busy = append(l.busy, occupier{start: b.Start, end: b.End, after: ref})
	}
	l.rebuild()
	return l, nil
}

// Intervals returns the ordered free intervals. The slice is a copy.
func (l *Ledger) Intervals() []FreeInterval {
	out := make([]FreeInterval, len(l.intervals))
	copy(out, l.intervals)
	return out
}

// Overlapping returns the free intervals intersecting [from, to), in order.
func (l *Ledger) Overlapping(from, to time.Time) []FreeInterval {
	var out []FreeInterval
	for _, iv := range l.intervals {
		if iv.Intersects(from, to) {
			out = append(out, iv)
		}
	}
	return out
}

// Reserve consumes the instance's on-site span, splitting the covering free
// interval. The instance must fit inside one interval; placement guarantees
// that before committing.
func (l *Ledger) Reserve(inst model.ErrandInstance) error {
	if inst.ID == "" {
		return fmt.Errorf("reserve: instance without ID")
	}
	if _, dup := l.placed[inst.ID]; dup {
		return fmt.Errorf("reserve: instance %s already reserved", inst.ID)
	}
	idx := -1
	for i, iv := range l.intervals {
		if iv.Contains(inst.Start, inst.End) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("reserve: no free interval covers %s [%s, %s)",
			inst.ID, inst.Start.Format(time.RFC3339), inst.End.Format(time.RFC3339))
	}

	iv := l.intervals[idx]
	at := occupierRef(inst)
	// Remote errands bound time only; the position context of the interval
	// passes through to the right-hand split.
	from := at
	if at.Kind == RefLoose {
		from = iv.From
	}
	var repl []FreeInterval
	if inst.Start.After(iv.Start) {
		repl = append(repl, FreeInterval{Start: iv.Start, End: inst.Start, From: iv.From, To: at})
	}
	if iv.End.After(inst.End) {
		repl = append(repl, FreeInterval{Start: inst.End, End: iv.End, From: from, To: iv.To})
	}
	l.intervals = append(l.intervals[:idx], append(repl, l.intervals[idx+1:]...)...)
	l.placed[inst.ID] = inst
	return nil
}

// Release reverses a reservation. The free view is rebuilt from the
// remaining occupiers rather than patched, so edge contexts stay exact.
func (l *Ledger) Release(instanceID string) error {
	if _, ok := l.placed[instanceID]; !ok {
		return fmt.Errorf("release: unknown instance %s", instanceID)
	}
	delete(l.placed, instanceID)
	l.rebuild()
	return nil
}

// Clone returns an independent copy for speculative cascade branches.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		cfg:     l.cfg,
		horizon: l.horizon,
		busy:    append([]occupier(nil), l.busy...),
		placed:  make(map[string]model.ErrandInstance, len(l.placed)),
	}
	for id, inst := range l.placed {
		c.placed[id] = inst
	}
	c.intervals = append([]FreeInterval(nil), l.intervals...)
	return c
}

// Restore overwrites this ledger with a snapshot taken via Clone.
func (l *Ledger) Restore(snap *Ledger) {
	l.cfg = snap.cfg
	l.horizon = snap.horizon
	l.busy = append(l.busy[:0], snap.busy...)
	l.placed = make(map[string]model.ErrandInstance, len(snap.placed))
	for id, inst := range snap.placed {
		l.placed[id] = inst
	}
	l.intervals = append(l.intervals[:0], snap.intervals...)
}

// occupierRef is the edge context a reservation leaves behind. Errands that
// need no travel get a loose ref: they pin the time, not the position.
func occupierRef(inst model.ErrandInstance) Ref {
	if inst.Def != nil && !inst.Def.Location.RequiresTravel() {
		return Ref{Kind: RefLoose, InstanceID: inst.ID}
	}
	return Ref{Kind: RefPlace, Coord: inst.Location, InstanceID: inst.ID}
}

// rebuild derives the interval list from busy events plus reservations.
func (l *Ledger) rebuild() {
	occ := append([]occupier(nil), l.busy...)
	ids := make([]string, 0, len(l.placed))
	for id := range l.placed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		inst := l.placed[id]
		occ = append(occ, occupier{start: inst.Start, end: inst.End, after: occupierRef(inst)})
	}
	sort.Slice(occ, func(i, j int) bool {
		if !occ[i].start.Equal(occ[j].start) {
			return occ[i].start.Before(occ[j].start)
		}
		return occ[i].end.Before(occ[j].end)
	})

	l.intervals = l.intervals[:0]
	for day := 0; day < l.horizon.Days; day++ {
		d := l.horizon.Day(day)
		dayStart := l.cfg.DayStart.At(d)
		dayEnd := l.cfg.DayEnd.At(d)

		pos := dayStart
		cur := Ref{Kind: RefHome}
		for _, o := range occ {
			if !o.start.Before(dayEnd) || !o.end.After(dayStart) {
				continue
			}
			s := o.start
			if s.Before(dayStart) {
				s = dayStart
			}
			if s.After(pos) {
				l.intervals = append(l.intervals, FreeInterval{Start: pos, End: s, From: cur, To: o.after})
			}
			if o.end.After(pos) {
				pos = o.end
				if o.after.Kind != RefLoose {
					cur = o.after
				}
			}
			if !pos.Before(dayEnd) {
				break
			}
		}
		if pos.Before(dayEnd) {
			l.intervals = append(l.intervals, FreeInterval{Start: pos, End: dayEnd, From: cur, To: Ref{Kind: RefDayEnd}})
		}
	}
}
