// Package metrics defines the events recorded while running rounds and the
// sinks that store them. Prometheus and InfluxDB sinks live in infra/metrics
// and register themselves with RegisterMetricsSink; several configured sinks
// are combined in a MultiSink.
package metrics
