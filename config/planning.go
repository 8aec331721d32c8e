package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/errandplan/core/ledger"
	"github.com/kilianp07/errandplan/core/model"
)

// PlanningConfig bounds the planning passes themselves.
type PlanningConfig struct {
	// HorizonDays is how far ahead each pass plans.
	HorizonDays int `json:"horizon_days"`
	// DayStart and DayEnd bound the plannable span of every day, HH:MM.
	DayStart string `json:"day_start"`
	DayEnd   string `json:"day_end"`
	// CascadeDepth is the displacement chain budget; 0 keeps the default.
	CascadeDepth int `json:"cascade_depth"`
	// MaxCandidates caps the free intervals one placement considers.
	MaxCandidates int `json:"max_candidates"`
	// Cron triggers automatic replans; empty disables them.
	Cron string `json:"cron"`
	// Timezone names the location horizons are anchored in. Empty means
	// the system timezone.
	Timezone string `json:"timezone"`
	// Home is where every day starts and ends.
	Home CoordConfig `json:"home"`
}

// CoordConfig is a WGS84 position in configuration.
type CoordConfig struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinate converts to the model type.
func (c CoordConfig) Coordinate() model.Coordinate {
	return model.Coordinate{Lat: c.Lat, Lon: c.Lon}
}

// SetDefaults applies sane defaults.
func (c *PlanningConfig) SetDefaults() {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.DayStart == "" {
		c.DayStart = "06:00"
	}
	if c.DayEnd == "" {
		c.DayEnd = "23:00"
	}
	if c.Cron == "" {
		c.Cron = "0 6 * * *"
	}
}

// Validate checks the section is usable.
func (c PlanningConfig) Validate() error {
	if _, err := c.LedgerConfig(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if !c.Home.Coordinate().Valid() {
		return fmt.Errorf("home coordinate outside WGS84 bounds")
	}
	if c.Cron != "" {
		if _, err := cron.ParseStandard(c.Cron); err != nil {
			return fmt.Errorf("invalid cron spec %q: %w", c.Cron, err)
		}
	}
	return nil
}

// LedgerConfig converts the day span into the ledger's form.
func (c PlanningConfig) LedgerConfig() (ledger.Config, error) {
	start, err := model.ParseMinuteOfDay(c.DayStart)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("day_start: %w", err)
	}
	end, err := model.ParseMinuteOfDay(c.DayEnd)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("day_end: %w", err)
	}
	if end <= start {
		return ledger.Config{}, fmt.Errorf("day span %s-%s is empty", c.DayStart, c.DayEnd)
	}
	return ledger.Config{DayStart: start, DayEnd: end}, nil
}

// Location resolves the configured timezone.
func (c PlanningConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}
