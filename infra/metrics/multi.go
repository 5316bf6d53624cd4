package metrics

import coremetrics "github.com/usermihir/Agentic-EV/core/metrics"

// MultiSink fans guardian events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(ev coremetrics.PlanEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordReservation forwards reservation transitions.
func (m *MultiSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordReservation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordQuarantine forwards quarantine toggles when supported by the sink.
func (m *MultiSink) RecordQuarantine(ev coremetrics.QuarantineEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.QuarantineRecorder); ok {
			if err := rec.RecordQuarantine(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAccuracyP90 forwards accuracy updates when supported by the sink.
func (m *MultiSink) RecordAccuracyP90(minutes float64) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.AccuracyRecorder); ok {
			if err := rec.RecordAccuracyP90(minutes); err != nil {
				return err
			}
		}
	}
	return nil
}
