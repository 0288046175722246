package metrics

// MultiSink forwards events to several sinks. Optional recorders are only
// called on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCycle(ev CycleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordBatch(ev BatchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BatchRecorder); ok {
			if err := rec.RecordBatch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordFanout(ev FanoutEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FanoutRecorder); ok {
			if err := rec.RecordFanout(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordMembers(group string, n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MembersRecorder); ok {
			if err := rec.RecordMembers(group, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordTelemetry(smp TelemetrySample) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TelemetryRecorder); ok {
			if err := rec.RecordTelemetry(smp); err != nil {
				return err
			}
		}
	}
	return nil
}
