package metrics

import (
	"context"

	coremetrics "github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/infra/logger"
	"github.com/medbot/rounds/internal/eventbus"
)

// StartTelemetryCollector subscribes to the telemetry bus and records every
// sample on sinks implementing TelemetryRecorder. It stops when the context
// is canceled or the bus is closed.
func StartTelemetryCollector(ctx context.Context, bus *eventbus.TypedBus[coremetrics.TelemetrySample], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.TelemetryRecorder)
	if !ok {
		return
	}
	log := logger.New("telemetry-collector")
	sub := bus.Subscribe()
	go func() {
		defer func() {
			bus.Unsubscribe(sub)
			if d := bus.Dropped(); d > 0 {
				log.Warnf("%d telemetry samples dropped by slow subscribers", d)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case smp, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordTelemetry(smp); err != nil {
					log.Warnf("record %s: %v", smp.Measurement, err)
				}
			}
		}
	}()
}
