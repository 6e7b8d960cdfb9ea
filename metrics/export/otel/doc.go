// Package otel provides OpenTelemetry metric exporter bindings for rotauth counters and
// histograms.
//
// [New] registers Int64ObservableCounter instruments for each rotauth metric
// and Int64ObservableGauge per histogram bucket. A single callback reads
// [rotauth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
