package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes planning results as Prometheus metrics.
type PromSink struct {
	runs          prometheus.Counter
	elapsed       prometheus.Histogram
	horizon       prometheus.Gauge
	placements    *prometheus.CounterVec
	unschedulable *prometheus.CounterVec
}

// NewPromSink registers planning metrics on the default Prometheus
// registerer. The /metrics endpoint is served separately by the API server.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plan_runs_total",
		Help: "Total number of recorded planning passes",
	})
	elapsed := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plan_run_elapsed_seconds",
		Help:    "Wall time of recorded planning passes",
		Buckets: prometheus.DefBuckets,
	})
	horizon := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_horizon_days",
		Help: "Horizon length of the most recent planning pass",
	})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_placements_total",
		Help: "Committed placements by category, access mode and cascade flag",
	}, []string{"category", "access", "cascaded"})
	unschedulable := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_unschedulable_by_definition_total",
		Help: "Occurrences without a slot, by definition",
	}, []string{"definition"})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(elapsed); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			elapsed = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(horizon); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			horizon = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(placements); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			placements = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(unschedulable); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			unschedulable = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		runs:          runs,
		elapsed:       elapsed,
		horizon:       horizon,
		placements:    placements,
		unschedulable: unschedulable,
	}, nil
}

// RecordRunSummary counts the pass and tracks its wall time and horizon.
func (s *PromSink) RecordRunSummary(run coremetrics.RunSummary) error {
	s.runs.Inc()
	s.elapsed.Observe(run.Elapsed.Seconds())
	s.horizon.Set(float64(run.HorizonDays))
	return nil
}

// RecordPlacements increments the placement counter per commit.
func (s *PromSink) RecordPlacements(recs []coremetrics.PlacementRecord) error {
	for _, r := range recs {
		s.placements.WithLabelValues(r.Category, r.Access, strconv.FormatBool(r.Cascaded)).Inc()
	}
	return nil
}

// RecordUnschedulable increments the per-definition failure counter.
func (s *PromSink) RecordUnschedulable(recs []coremetrics.UnschedulableRecord) error {
	for _, r := range recs {
		s.unschedulable.WithLabelValues(r.DefinitionID).Inc()
	}
	return nil
}
