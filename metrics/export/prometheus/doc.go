// Package prometheus provides Prometheus collectors for rotauth metrics.
//
// [New] accepts a [rotauth.Engine] and returns an [Exporter] that renders all
// rotauth counters and histograms in Prometheus text exposition format. The
// Exporter is an [http.Handler] and mounts directly on a mux. Counter names
// are prefixed rotauth_*_total; the single histogram is
// rotauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the handler.
//   - Mutate engine state.
package prometheus
