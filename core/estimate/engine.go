package estimate

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Field names a single feedback value for partial updates.
type Field string

const (
	FieldDuration Field = "duration"
	FieldTravel   Field = "travel"
)

// Observation is the feedback captured when an occurrence completes. The
// planned values come from the agenda entry, letting the engine measure how
// far its inputs were off. Zero actuals mean the value was not reported.
type Observation struct {
	ActualDuration  time.Duration
	ActualTravel    time.Duration
	PlannedDuration time.Duration
	PlannedTravel   time.Duration
}

// Engine adjusts future planning inputs from completion feedback. It never
// mutates the past schedule.
type Engine interface {
	// DurationFor returns the duration to plan for the definition, blending
	// the configured fallback with observed completions.
	DurationFor(defID string, fallback time.Duration) time.Duration

	// TravelBias returns the mean signed error of travel estimates for the
	// definition. Positive means journeys run longer than planned.
	TravelBias(defID string) time.Duration

	// RecordCompletion feeds back a full completion report.
	RecordCompletion(defID string, obs Observation)

	// RecordActual feeds back a single value without planning context.
	RecordActual(defID string, field Field, value time.Duration)
}

// Stats summarises the recorded history of one definition for the KPI API.
type Stats struct {
	DefinitionID     string  `json:"definition_id"`
	Samples          int     `json:"samples"`
	MeanDurationMin  float64 `json:"mean_duration_min"`
	StdevDurationMin float64 `json:"stdev_duration_min"`
	P90DurationMin   float64 `json:"p90_duration_min"`
	MeanAbsErrorMin  float64 `json:"mean_abs_error_min"`
	TravelBiasMin    float64 `json:"travel_bias_min"`
}

const (
	defaultWindow = 20
	// priorWeight is how many pseudo-samples the configured estimate is
	// worth when blending against observations.
	priorWeight = 5
)

type defSamples struct {
	durations []float64 // minutes
	durAbsErr []float64
	travelErr []float64 // minutes, actual minus planned
	travels   []float64 // raw reports without planning context
}

// HistoryEngine keeps a bounded sample window per definition and blends the
// configured estimate with the observed mean, weighted by sample count.
type HistoryEngine struct {
	mu      sync.RWMutex
	window  int
	samples map[string]*defSamples
}

var _ Engine = (*HistoryEngine)(nil)

// NewHistoryEngine creates an engine keeping at most window samples per
// definition. A non-positive window selects the default.
func NewHistoryEngine(window int) *HistoryEngine {
	if window <= 0 {
		window = defaultWindow
	}
	return &HistoryEngine{window: window, samples: map[string]*defSamples{}}
}

// DurationFor blends the fallback with the observed mean, weighted by how
// many samples back the observation.
func (e *HistoryEngine) DurationFor(defID string, fallback time.Duration) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.samples[defID]
	if s == nil || len(s.durations) == 0 {
		return fallback
	}
	observed := stat.Mean(s.durations, nil)
	n := float64(len(s.durations))
	blended := (fallback.Minutes()*priorWeight + observed*n) / (priorWeight + n)
	return time.Duration(math.Round(blended)) * time.Minute
}

// TravelBias is the mean signed travel estimate error, zero without samples.
func (e *HistoryEngine) TravelBias(defID string) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.samples[defID]
	if s == nil || len(s.travelErr) == 0 {
		return 0
	}
	return time.Duration(stat.Mean(s.travelErr, nil) * float64(time.Minute))
}

// RecordCompletion folds a completion report into the definition's window.
func (e *HistoryEngine) RecordCompletion(defID string, obs Observation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.ensure(defID)
	if obs.ActualDuration > 0 {
		s.durations = e.push(s.durations, obs.ActualDuration.Minutes())
		if obs.PlannedDuration > 0 {
			s.durAbsErr = e.push(s.durAbsErr, math.Abs((obs.ActualDuration - obs.PlannedDuration).Minutes()))
		}
	}
	if obs.ActualTravel > 0 {
		s.travelErr = e.push(s.travelErr, (obs.ActualTravel - obs.PlannedTravel).Minutes())
	}
}

// RecordActual folds a single observed value in. Travel reports without a
// planned counterpart cannot measure error; they only feed the KPI view.
func (e *HistoryEngine) RecordActual(defID string, field Field, value time.Duration) {
	if value <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.ensure(defID)
	switch field {
	case FieldDuration:
		s.durations = e.push(s.durations, value.Minutes())
	case FieldTravel:
		s.travels = e.push(s.travels, value.Minutes())
	}
}

// Snapshot returns per-definition statistics, sorted by definition ID.
func (e *HistoryEngine) Snapshot() []Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res := make([]Stats, 0, len(e.samples))
	for id, s := range e.samples {
		st := Stats{DefinitionID: id, Samples: len(s.durations)}
		if len(s.durations) > 0 {
			st.MeanDurationMin = stat.Mean(s.durations, nil)
			sorted := append([]float64(nil), s.durations...)
			sort.Float64s(sorted)
			st.P90DurationMin = stat.Quantile(0.9, stat.Empirical, sorted, nil)
		}
		if len(s.durations) > 1 {
			st.StdevDurationMin = stat.StdDev(s.durations, nil)
		}
		if len(s.durAbsErr) > 0 {
			st.MeanAbsErrorMin = stat.Mean(s.durAbsErr, nil)
		}
		if len(s.travelErr) > 0 {
			st.TravelBiasMin = stat.Mean(s.travelErr, nil)
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DefinitionID < res[j].DefinitionID })
	return res
}

func (e *HistoryEngine) ensure(defID string) *defSamples {
	s := e.samples[defID]
	if s == nil {
		s = &defSamples{}
		e.samples[defID] = s
	}
	return s
}

func (e *HistoryEngine) push(w []float64, v float64) []float64 {
	w = append(w, v)
	if len(w) > e.window {
		w = w[len(w)-e.window:]
	}
	return w
}
