package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	passDuration            prometheus.Histogram
	instancesPlaced         *prometheus.CounterVec
	instancesUnschedulable  *prometheus.CounterVec
	cascadeAttempts         prometheus.Counter
	cascadeWins             prometheus.Counter
	placementProviderErrors prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plan_pass_duration_seconds",
			Help:    "Wall time of a full planning pass",
			Buckets: prometheus.DefBuckets,
		},
	)
	placed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errand_instances_placed_total",
			Help: "Number of errand instances committed to the agenda",
		},
		[]string{"category"},
	)
	unsched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errand_instances_unschedulable_total",
			Help: "Number of errand instances no slot could be found for",
		},
		[]string{"reason"},
	)
	attempts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_attempts_total",
			Help: "Number of displacement cascades started",
		},
	)
	wins := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cascade_wins_total",
			Help: "Number of displacement cascades that found a slot",
		},
	)
	provErr := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "placement_provider_errors_total",
			Help: "Number of travel estimate or venue lookups dropped by provider errors",
		},
	)
	return dur, placed, unsched, attempts, wins, provErr
}

func init() {
	passDuration, instancesPlaced, instancesUnschedulable, cascadeAttempts, cascadeWins, placementProviderErrors = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planning metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(passDuration, instancesPlaced, instancesUnschedulable, cascadeAttempts, cascadeWins, placementProviderErrors)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	passDuration, instancesPlaced, instancesUnschedulable, cascadeAttempts, cascadeWins, placementProviderErrors = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
