package metrics

import "github.com/kilianp07/errandplan/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// EmissionFactors maps an access mode to grams of CO2 per kilometre,
	// used by the usage KPIs to price planned travel.
	EmissionFactors map[string]float64 `json:"emission_factors"`
}
