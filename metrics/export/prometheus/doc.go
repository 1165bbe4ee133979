// Package prometheus provides Prometheus collectors for verification metrics.
//
// [NewPrometheusExporter] accepts a [biometric.Engine] and exposes an [http.Handler]
// that renders all engine counters and the verify-latency histogram in Prometheus
// text exposition format. Counter names are prefixed biometric_*_total; the single
// histogram is biometric_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
