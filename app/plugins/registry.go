package plugins

import (
	"fmt"

	"github.com/kilianp07/errandplan/config"
	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/kilianp07/errandplan/core/runlog"
	"github.com/kilianp07/errandplan/core/travel"
)

// RunLogFactory builds a run-log store from its configuration section.
type RunLogFactory func(conf config.RunLogConfig) (runlog.Store, error)

// UsageStoreFactory builds a usage KPI store from its configuration section.
type UsageStoreFactory func(conf config.KPIConfig) (usage.Store, error)

// TravelFactory builds the travel provider and resolver pair for one mode.
// The places are the configured venues open-location errands choose from.
type TravelFactory func(conf config.TravelConfig, places []travel.Place) (travel.Provider, travel.Resolver, error)

var (
	RunLogStores = map[string]RunLogFactory{}
	UsageStores  = map[string]UsageStoreFactory{}
	Travels      = map[string]TravelFactory{}
)

func RegisterRunLogStore(name string, f RunLogFactory)    { RunLogStores[name] = f }
func RegisterUsageStore(name string, f UsageStoreFactory) { UsageStores[name] = f }
func RegisterTravel(name string, f TravelFactory)         { Travels[name] = f }

// NewRunLogStore builds the backend named by the config.
func NewRunLogStore(conf config.RunLogConfig) (runlog.Store, error) {
	f, ok := RunLogStores[conf.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown runlog backend %q", conf.Backend)
	}
	return f(conf)
}

// NewUsageStore builds the backend named by the config.
func NewUsageStore(conf config.KPIConfig) (usage.Store, error) {
	f, ok := UsageStores[conf.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown kpi backend %q", conf.Backend)
	}
	return f(conf)
}

// NewTravel builds the provider and resolver for the configured mode.
func NewTravel(conf config.TravelConfig, places []travel.Place) (travel.Provider, travel.Resolver, error) {
	f, ok := Travels[conf.Mode]
	if !ok {
		return nil, nil, fmt.Errorf("unknown travel mode %q", conf.Mode)
	}
	return f(conf, places)
}
