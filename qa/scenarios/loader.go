package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/errandplan/config"
	"github.com/kilianp07/errandplan/core/ledger"
	"github.com/kilianp07/errandplan/core/model"
	"github.com/kilianp07/errandplan/core/travel"
)

type CoordDef struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

func (c CoordDef) ToModel() model.Coordinate {
	return model.Coordinate{Lat: c.Lat, Lon: c.Lon}
}

type PlaceDef struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
}

func (p PlaceDef) ToModel() travel.Place {
	return travel.Place{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Coord:    model.Coordinate{Lat: p.Lat, Lon: p.Lon},
	}
}

// BusyDef is one opaque calendar block. Date is YYYY-MM-DD, the bounds HH:MM.
type BusyDef struct {
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

func (b BusyDef) ToModel() (model.BusyEvent, error) {
	day, err := time.ParseInLocation("2006-01-02", b.Date, time.UTC)
	if err != nil {
		return model.BusyEvent{}, fmt.Errorf("busy %q: %w", b.Title, err)
	}
	start, err := model.ParseMinuteOfDay(b.Start)
	if err != nil {
		return model.BusyEvent{}, fmt.Errorf("busy %q: %w", b.Title, err)
	}
	end, err := model.ParseMinuteOfDay(b.End)
	if err != nil {
		return model.BusyEvent{}, fmt.Errorf("busy %q: %w", b.Title, err)
	}
	return model.BusyEvent{
		Title: b.Title,
		Start: day.Add(time.Duration(start) * time.Minute),
		End:   day.Add(time.Duration(end) * time.Minute),
	}, nil
}

type LocationDef struct {
	Kind     string  `yaml:"kind"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
}

type RepeatDef struct {
	Kind     string   `yaml:"kind"`
	EveryN   int      `yaml:"every_n"`
	Weekdays []string `yaml:"weekdays"`
}

type IntervalDef struct {
	TargetDays    int `yaml:"target_days"`
	ToleranceDays int `yaml:"tolerance_days"`
	MinGapDays    int `yaml:"min_gap_days"`
}

type ErrandDef struct {
	ID          string      `yaml:"id"`
	Title       string      `yaml:"title"`
	Category    string      `yaml:"category"`
	Access      string      `yaml:"access"`
	Priority    int         `yaml:"priority"`
	DurationMin int         `yaml:"duration_min"`
	WindowStart string      `yaml:"window_start"`
	WindowEnd   string      `yaml:"window_end"`
	Location    LocationDef `yaml:"location"`
	Repeat      RepeatDef   `yaml:"repeat"`
	Interval    IntervalDef `yaml:"interval"`

	FlexDuration   bool `yaml:"flex_duration"`
	MinDurationMin int  `yaml:"min_duration_min"`
}

// ToModel funnels the scenario entry through the same conversion the
// configuration loader uses, validation included.
func (e ErrandDef) ToModel() (*model.ErrandDefinition, error) {
	conf := config.ErrandConfig{
		ID:          e.ID,
		Title:       e.Title,
		Category:    e.Category,
		Access:      e.Access,
		Priority:    e.Priority,
		DurationMin: e.DurationMin,
		WindowStart: e.WindowStart,
		WindowEnd:   e.WindowEnd,
		Location: config.LocationConfig{
			Kind:     e.Location.Kind,
			Lat:      e.Location.Lat,
			Lon:      e.Location.Lon,
			Name:     e.Location.Name,
			Category: e.Location.Category,
		},
		Repeat: config.RepeatConfig{
			Kind:     e.Repeat.Kind,
			EveryN:   e.Repeat.EveryN,
			Weekdays: e.Repeat.Weekdays,
		},
		Interval: config.IntervalConfig{
			TargetDays:    e.Interval.TargetDays,
			ToleranceDays: e.Interval.ToleranceDays,
			MinGapDays:    e.Interval.MinGapDays,
		},
		FlexDuration:   e.FlexDuration,
		MinDurationMin: e.MinDurationMin,
	}
	return conf.Definition()
}

// UnschedDef names one expected unschedulable occurrence.
type UnschedDef struct {
	DefinitionID string `yaml:"definition_id"`
	Reason       string `yaml:"reason"`
}

// CheckDef constrains the placed occurrences of one definition. Empty
// fields are not checked.
type CheckDef struct {
	Definition    string `yaml:"definition"`
	EarliestStart string `yaml:"earliest_start"`
	LatestEnd     string `yaml:"latest_end"`
	Location      string `yaml:"location"`
}

type Expected struct {
	Placed        int            `yaml:"placed"`
	Counts        map[string]int `yaml:"counts,omitempty"`
	Unschedulable []UnschedDef   `yaml:"unschedulable,omitempty"`
	CascadeWins   int            `yaml:"cascade_wins"`
	Checks        []CheckDef     `yaml:"checks,omitempty"`
}

type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Start       string      `yaml:"start"`
	HorizonDays int         `yaml:"horizon_days"`
	DayStart    string      `yaml:"day_start"`
	DayEnd      string      `yaml:"day_end"`
	Home        CoordDef    `yaml:"home"`
	Places      []PlaceDef  `yaml:"places,omitempty"`
	Busy        []BusyDef   `yaml:"busy,omitempty"`
	Errands     []ErrandDef `yaml:"errands"`
	Expected    Expected    `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Horizon anchors the planning window at the scenario's start date, UTC.
func (s *Scenario) Horizon() (model.Horizon, error) {
	day, err := time.ParseInLocation("2006-01-02", s.Start, time.UTC)
	if err != nil {
		return model.Horizon{}, fmt.Errorf("start: %w", err)
	}
	days := s.HorizonDays
	if days <= 0 {
		days = 1
	}
	return model.NewHorizon(day, days), nil
}

// LedgerConfig reads the scenario's waking-day bounds.
func (s *Scenario) LedgerConfig() (ledger.Config, error) {
	if s.DayStart == "" && s.DayEnd == "" {
		return ledger.DefaultConfig(), nil
	}
	start, err := model.ParseMinuteOfDay(s.DayStart)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("day_start: %w", err)
	}
	end, err := model.ParseMinuteOfDay(s.DayEnd)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("day_end: %w", err)
	}
	return ledger.Config{DayStart: start, DayEnd: end}, nil
}

func (s *Scenario) Definitions() ([]*model.ErrandDefinition, error) {
	defs := make([]*model.ErrandDefinition, 0, len(s.Errands))
	for _, e := range s.Errands {
		def, err := e.ToModel()
		if err != nil {
			return nil, fmt.Errorf("errand %s: %w", e.ID, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (s *Scenario) BusyEvents() ([]model.BusyEvent, error) {
	events := make([]model.BusyEvent, 0, len(s.Busy))
	for _, b := range s.Busy {
		ev, err := b.ToModel()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Scenario) PlaceList() []travel.Place {
	places := make([]travel.Place, 0, len(s.Places))
	for _, p := range s.Places {
		places = append(places, p.ToModel())
	}
	return places
}
