package metrics

import "time"

// Cycle results.
const (
	CycleFired     = "fired"
	CycleIdle      = "idle"
	CycleContended = "contended"
	CycleAbandoned = "abandoned"
)

// CycleEvent summarises one trigger cycle.
type CycleEvent struct {
	Minute     string
	Result     string
	Candidates int
	Fired      int
	Failed     int
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records trigger cycles. Sinks may implement the optional
// recorders below.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
}

// BatchEvent records the plan build of one batch.
type BatchEvent struct {
	BatchID   int64
	BatchName string
	Rooms     int
	Beds      int
	Duration  time.Duration
	Err       string
	Time      time.Time
}

// BatchRecorder records plan builds.
type BatchRecorder interface {
	RecordBatch(ev BatchEvent) error
}

// FanoutEvent records one publish on a group.
type FanoutEvent struct {
	Group     string
	Delivered int
	Dropped   int
	Time      time.Time
}

// FanoutRecorder records fan-out publishes.
type FanoutRecorder interface {
	RecordFanout(ev FanoutEvent) error
}

// MembersRecorder tracks the number of members joined to a group.
type MembersRecorder interface {
	RecordMembers(group string, n int) error
}

// TelemetrySample is a robot reading. Fields hold numbers, booleans or strings.
type TelemetrySample struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// TelemetryRecorder stores telemetry history.
type TelemetryRecorder interface {
	RecordTelemetry(s TelemetrySample) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error          { return nil }
func (NopSink) RecordBatch(BatchEvent) error          { return nil }
func (NopSink) RecordFanout(FanoutEvent) error        { return nil }
func (NopSink) RecordMembers(string, int) error       { return nil }
func (NopSink) RecordTelemetry(TelemetrySample) error { return nil }
