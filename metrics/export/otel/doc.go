// Package otel bridges engine metrics into the OpenTelemetry metrics API.
//
// The exporter registers asynchronous instruments on a caller-supplied
// metric.Meter and observes the engine's counter and latency snapshot on
// every collection cycle. It performs no aggregation of its own: the engine
// already keeps cumulative counters, so each collect simply reports the
// current values.
//
// # Responsibilities
//
//   - Register one observable counter per engine metric.
//   - Expose the verification latency histogram as per-bucket gauges plus a
//     total count, matching the Prometheus exporter's bucket layout.
//   - Report dropped verification records from the audit dispatcher.
//
// # What this package must NOT do
//
//   - Own a MeterProvider. Callers configure the SDK and supply the Meter.
//   - Mutate engine state. The exporter is strictly read-only.
//   - Block inside the collection callback. Snapshots are cheap copies.
package otel
