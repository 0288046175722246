package metrics

import (
	"fmt"

	"github.com/medbot/rounds/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

func init() {
	_ = RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) { return NopSink{}, nil })
}

// Config lists the sinks receiving cycle, batch, fan-out and telemetry
// events. An empty list records nothing.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate rejects unnamed and repeated sink types. Whether a type is known
// is only checked by NewMetricsSink, once every adapter has registered.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Sinks))
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sinks[%d]: type is required", i)
		}
		if seen[s.Type] {
			return fmt.Errorf("sinks[%d]: %s listed twice", i, s.Type)
		}
		seen[s.Type] = true
	}
	return nil
}

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinkRegistry.Names() }

// NewMetricsSink builds every configured sink, combining several in a
// MultiSink. Sinks already built are closed when a later one fails.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	sinks := make([]MetricsSink, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			for _, built := range sinks {
				CloseSink(built)
			}
			return nil, fmt.Errorf("sink %s: %w", c.Type, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// CloseSink flushes and closes s when it holds a client. Each sink of a
// MultiSink is closed in turn.
func CloseSink(s MetricsSink) {
	switch v := s.(type) {
	case *MultiSink:
		for _, inner := range v.Sinks {
			CloseSink(inner)
		}
	case interface{ Close() }:
		v.Close()
	}
}
