// Package infra holds the adapters behind the core interfaces: the SQL
// store, the Redis lock, the MQTT fan-out backbone and telemetry ingest, the
// cron driver and the metrics sinks. Core packages never import infra.
package infra
