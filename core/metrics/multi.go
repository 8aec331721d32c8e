package metrics

// MultiSink fans planning records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRunSummary forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordRunSummary(run RunSummary) error {
	for _, s := range m.Sinks {
		if err := s.RecordRunSummary(run); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlacements forwards placement records to sinks that keep them.
func (m *MultiSink) RecordPlacements(recs []PlacementRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PlacementRecorder); ok {
			if err := rec.RecordPlacements(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordUnschedulable forwards unschedulable records to sinks that keep them.
func (m *MultiSink) RecordUnschedulable(recs []UnschedulableRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(UnschedulableRecorder); ok {
			if err := rec.RecordUnschedulable(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTrigger forwards trigger events to sinks that keep them.
func (m *MultiSink) RecordTrigger(ev TriggerEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TriggerRecorder); ok {
			if err := rec.RecordTrigger(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
