package metrics

import (
	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/prometheus/client_golang/prometheus"
)

// UsageSink folds committed placements into daily per-category usage KPIs.
type UsageSink struct {
	store   usage.Store
	factors map[string]float64
	planned *prometheus.GaugeVec
	share   *prometheus.GaugeVec
	co2     *prometheus.GaugeVec
}

// NewUsageSink creates a sink with Prometheus gauges registered on reg.
// Factors map an access mode to grams of CO2 per planned kilometre.
func NewUsageSink(store usage.Store, factors map[string]float64, reg prometheus.Registerer) *UsageSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	planned := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "category_planned_minutes",
		Help: "Daily planned errand minutes per category",
	}, []string{"category", "day"})
	share := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "category_travel_share",
		Help: "Daily fraction of committed time spent travelling",
	}, []string{"category", "day"})
	co2 := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "category_travel_co2_grams",
		Help: "Daily CO2 cost of planned travel per category",
	}, []string{"category", "day"})
	reg.MustRegister(planned, share, co2)
	return &UsageSink{store: store, factors: factors, planned: planned, share: share, co2: co2}
}

// RecordRunSummary is a no-op; the sink works off individual placements.
func (s *UsageSink) RecordRunSummary(coremetrics.RunSummary) error { return nil }

// RecordPlacements merges each commit into the daily record and refreshes
// the gauges from the aggregate.
func (s *UsageSink) RecordPlacements(recs []coremetrics.PlacementRecord) error {
	for _, r := range recs {
		rec := usage.Record{
			Category:    r.Category,
			Date:        r.Date,
			PlannedMin:  r.End.Sub(r.Start).Minutes(),
			TravelMin:   r.Travel.Minutes(),
			TravelKm:    r.TravelKm,
			Occurrences: 1,
		}
		if err := s.store.Add(rec); err != nil {
			return err
		}
		day := usage.Day(rec.Date).Format("2006-01-02")
		rows, _ := s.store.Query(r.Category, rec.Date, rec.Date)
		if len(rows) > 0 {
			agg := rows[0]
			s.planned.WithLabelValues(r.Category, day).Set(agg.PlannedMin)
			s.share.WithLabelValues(r.Category, day).Set(agg.TravelShare())
		}
		// The day aggregate loses the access split, so CO2 accumulates per
		// placement with that placement's emission factor.
		s.co2.WithLabelValues(r.Category, day).Add(rec.Footprint(s.factors[r.Access]))
	}
	return nil
}
