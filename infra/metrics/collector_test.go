package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/internal/eventbus"
)

type telemetrySink struct {
	coremetrics.NopSink
	mu      sync.Mutex
	samples []coremetrics.TelemetrySample
}

func (s *telemetrySink) RecordTelemetry(smp coremetrics.TelemetrySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, smp)
	return nil
}

func (s *telemetrySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestStartTelemetryCollector(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.NewTyped[coremetrics.TelemetrySample](4)
	sink := &telemetrySink{}
	StartTelemetryCollector(ctx, bus, sink)

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		bus.Publish(coremetrics.TelemetrySample{Measurement: "arm_endpose"})
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() == 0 {
		t.Fatal("sample not recorded")
	}
}
