package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/errandplan/core/model"
	"github.com/kilianp07/errandplan/core/travel"
)

// ErrandConfig is the file-side shape of one errand definition. Durations
// are minutes, times of day HH:MM, dates YYYY-MM-DD.
type ErrandConfig struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	// Access names how the user gets there; empty defaults to drive.
	Access      string         `json:"access"`
	Priority    int            `json:"priority"`
	DurationMin int            `json:"duration_min"`
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	Location    LocationConfig `json:"location"`
	Repeat      RepeatConfig   `json:"repeat"`
	Interval    IntervalConfig `json:"interval"`

	FlexStart      bool `json:"flex_start"`
	FlexEnd        bool `json:"flex_end"`
	FlexDuration   bool `json:"flex_duration"`
	MinDurationMin int  `json:"min_duration_min"`
	MaxDurationMin int  `json:"max_duration_min"`

	// Complementary and Conflicting reference other errand IDs. Relations
	// are mirrored onto their partners at load time, so declaring a pair on
	// either side is enough.
	Complementary        []string `json:"complementary"`
	SameDayRequired      bool     `json:"same_day_required"`
	OrderRequired        bool     `json:"order_required"`
	SameLocationRequired bool     `json:"same_location_required"`
	Conflicting          []string `json:"conflicting"`
	// ConflictKind is time, location or both; required when conflicting is set.
	ConflictKind string `json:"conflict_kind"`
}

// LocationConfig selects one location variant by kind.
type LocationConfig struct {
	// Kind is exact, place, category or remote.
	Kind         string        `json:"kind"`
	Lat          float64       `json:"lat"`
	Lon          float64       `json:"lon"`
	Name         string        `json:"name"`
	Category     string        `json:"category"`
	Alternatives []CoordConfig `json:"alternatives"`
}

// RepeatConfig is the file-side shape of a recurrence rule.
type RepeatConfig struct {
	Kind        string   `json:"kind"`
	EveryN      int      `json:"every_n"`
	Weekdays    []string `json:"weekdays"`
	WeekdaysAlt []string `json:"weekdays_alt"`
	// Anchor dates the first week of biweekly rules, YYYY-MM-DD.
	Anchor    string   `json:"anchor"`
	MonthDays []int    `json:"month_days"`
	// YearDays lists MM-DD entries for yearly-on-days rules.
	YearDays []string `json:"year_days"`
}

// IntervalConfig spaces consecutive occurrences, in days.
type IntervalConfig struct {
	TargetDays    int `json:"target_days"`
	ToleranceDays int `json:"tolerance_days"`
	MinGapDays    int `json:"min_gap_days"`
}

// Definition converts the config entry into a validated model definition.
func (e ErrandConfig) Definition() (*model.ErrandDefinition, error) {
	def := &model.ErrandDefinition{
		ID:           e.ID,
		Title:        e.Title,
		Category:     e.Category,
		Priority:     e.Priority,
		Duration:     time.Duration(e.DurationMin) * time.Minute,
		FlexStart:    e.FlexStart,
		FlexEnd:      e.FlexEnd,
		FlexDuration: e.FlexDuration,
		MinDuration:  time.Duration(e.MinDurationMin) * time.Minute,
		MaxDuration:  time.Duration(e.MaxDurationMin) * time.Minute,

		Complementary:        append([]string(nil), e.Complementary...),
		SameDayRequired:      e.SameDayRequired,
		OrderRequired:        e.OrderRequired,
		SameLocationRequired: e.SameLocationRequired,
		Conflicting:          append([]string(nil), e.Conflicting...),
	}

	kind, err := model.ParseConflictKind(e.ConflictKind)
	if err != nil {
		return nil, err
	}
	def.ConflictKind = kind

	if e.Access != "" {
		access, err := model.ParseAccessType(e.Access)
		if err != nil {
			return nil, err
		}
		def.Access = access
	}

	window, err := parseWindow(e.WindowStart, e.WindowEnd)
	if err != nil {
		return nil, err
	}
	def.Window = window

	loc, err := e.Location.spec()
	if err != nil {
		return nil, err
	}
	def.Location = loc

	repeat, err := e.Repeat.rule()
	if err != nil {
		return nil, err
	}
	def.Repeat = repeat

	def.Interval = model.IntervalRange{
		Target:    time.Duration(e.Interval.TargetDays) * 24 * time.Hour,
		Tolerance: time.Duration(e.Interval.ToleranceDays) * 24 * time.Hour,
		MinGap:    time.Duration(e.Interval.MinGapDays) * 24 * time.Hour,
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// parseWindow reads the HH:MM pair; both empty means the whole day.
func parseWindow(start, end string) (model.TimeWindow, error) {
	if start == "" && end == "" {
		return model.TimeWindow{Start: 0, End: 24 * 60}, nil
	}
	s, err := model.ParseMinuteOfDay(start)
	if err != nil {
		return model.TimeWindow{}, fmt.Errorf("window_start: %w", err)
	}
	e, err := model.ParseMinuteOfDay(end)
	if err != nil {
		return model.TimeWindow{}, fmt.Errorf("window_end: %w", err)
	}
	return model.TimeWindow{Start: s, End: e}, nil
}

func (l LocationConfig) spec() (model.LocationSpec, error) {
	switch strings.ToLower(l.Kind) {
	case "", "exact":
		return model.LocationSpec{
			Kind:  model.LocationExact,
			Coord: model.Coordinate{Lat: l.Lat, Lon: l.Lon},
		}, nil
	case "place":
		alts := make([]model.Coordinate, 0, len(l.Alternatives))
		for _, a := range l.Alternatives {
			alts = append(alts, a.Coordinate())
		}
		return model.LocationSpec{
			Kind:         model.LocationPlace,
			Coord:        model.Coordinate{Lat: l.Lat, Lon: l.Lon},
			Name:         l.Name,
			Alternatives: alts,
		}, nil
	case "category", "open":
		return model.LocationSpec{
			Kind:     model.LocationCategory,
			Category: l.Category,
		}, nil
	case "remote", "none":
		return model.LocationSpec{Kind: model.LocationRemote}, nil
	default:
		return model.LocationSpec{}, fmt.Errorf("unknown location kind %q", l.Kind)
	}
}

func (r RepeatConfig) rule() (model.RepeatRule, error) {
	kind, err := model.ParseRepeatKind(r.Kind)
	if err != nil {
		return model.RepeatRule{}, err
	}
	rule := model.RepeatRule{Kind: kind, EveryN: r.EveryN, MonthDays: r.MonthDays}

	for _, w := range r.Weekdays {
		day, err := parseWeekday(w)
		if err != nil {
			return model.RepeatRule{}, err
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	for _, w := range r.WeekdaysAlt {
		day, err := parseWeekday(w)
		if err != nil {
			return model.RepeatRule{}, err
		}
		rule.WeekdaysAlt = append(rule.WeekdaysAlt, day)
	}
	if r.Anchor != "" {
		anchor, err := time.Parse("2006-01-02", r.Anchor)
		if err != nil {
			return model.RepeatRule{}, fmt.Errorf("repeat anchor: %w", err)
		}
		rule.AnchorMonday = anchor
	}
	for _, yd := range r.YearDays {
		var m, d int
		if _, err := fmt.Sscanf(yd, "%d-%d", &m, &d); err != nil {
			return model.RepeatRule{}, fmt.Errorf("year day %q: %w", yd, err)
		}
		if m < 1 || m > 12 || d < 1 || d > 31 {
			return model.RepeatRule{}, fmt.Errorf("year day %q out of range", yd)
		}
		rule.YearDays = append(rule.YearDays, model.MonthDay{Month: time.Month(m), Day: d})
	}
	return rule, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	case "sunday", "sun":
		return time.Sunday, nil
	default:
		return time.Sunday, fmt.Errorf("unknown weekday %q", s)
	}
}

// PlaceConfig is one known venue open-location errands may resolve to.
type PlaceConfig struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// Validate checks the place is usable.
func (p PlaceConfig) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("place id is required")
	}
	coord := model.Coordinate{Lat: p.Lat, Lon: p.Lon}
	if !coord.Valid() {
		return fmt.Errorf("place %s: coordinate outside WGS84 bounds", p.ID)
	}
	return nil
}

// Place converts to the resolver's form.
func (p PlaceConfig) Place() travel.Place {
	return travel.Place{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Coord:    model.Coordinate{Lat: p.Lat, Lon: p.Lon},
	}
}

// Definitions converts every configured errand and mirrors declared
// relations onto their partners, so both sides of a pair enforce it.
func (c *Config) Definitions() ([]*model.ErrandDefinition, error) {
	defs := make([]*model.ErrandDefinition, 0, len(c.Errands))
	byID := make(map[string]*model.ErrandDefinition, len(c.Errands))
	for i, e := range c.Errands {
		def, err := e.Definition()
		if err != nil {
			return nil, fmt.Errorf("errands[%d] (%s): %w", i, e.ID, err)
		}
		defs = append(defs, def)
		byID[def.ID] = def
	}
	if err := reciprocateRelations(defs, byID); err != nil {
		return nil, err
	}
	return defs, nil
}

// reciprocateRelations adds the reverse edge of every declared relation. A
// partner that declares no conflict kind of its own adopts the declarer's.
func reciprocateRelations(defs []*model.ErrandDefinition, byID map[string]*model.ErrandDefinition) error {
	for _, def := range defs {
		for _, id := range def.Complementary {
			partner, ok := byID[id]
			if !ok {
				return fmt.Errorf("errand %s: complementary errand %q not defined", def.ID, id)
			}
			if !containsID(partner.Complementary, def.ID) {
				partner.Complementary = append(partner.Complementary, def.ID)
			}
		}
		for _, id := range def.Conflicting {
			partner, ok := byID[id]
			if !ok {
				return fmt.Errorf("errand %s: conflicting errand %q not defined", def.ID, id)
			}
			if !containsID(partner.Conflicting, def.ID) {
				partner.Conflicting = append(partner.Conflicting, def.ID)
				if partner.ConflictKind == model.ConflictNone {
					partner.ConflictKind = def.ConflictKind
				}
			}
		}
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ResolverPlaces converts every configured place.
func (c *Config) ResolverPlaces() []travel.Place {
	places := make([]travel.Place, 0, len(c.Places))
	for _, p := range c.Places {
		places = append(places, p.Place())
	}
	return places
}

// PlaceIndex maps place names and IDs to coordinates, for resolving
// calendar event locations.
func (c *Config) PlaceIndex() map[string]model.Coordinate {
	idx := make(map[string]model.Coordinate, len(c.Places)*2)
	for _, p := range c.Places {
		coord := model.Coordinate{Lat: p.Lat, Lon: p.Lon}
		idx[p.ID] = coord
		if p.Name != "" {
			idx[p.Name] = coord
		}
	}
	return idx
}
