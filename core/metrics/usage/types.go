package usage

import "time"

// Record aggregates planning usage for a category and day.
type Record struct {
	Category      string
	Date          time.Time
	PlannedMin    float64
	TravelMin     float64
	TravelKm      float64
	Occurrences   int
	Unschedulable int
}

// Footprint returns the grams of CO2 the planned travel costs, given a
// per-kilometre emission factor.
func (r Record) Footprint(gramsPerKm float64) float64 {
	return r.TravelKm * gramsPerKm
}

// TravelShare returns the fraction of committed time spent travelling.
func (r Record) TravelShare() float64 {
	total := r.PlannedMin + r.TravelMin
	if total == 0 {
		return 0
	}
	return r.TravelMin / total
}
