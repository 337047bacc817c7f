// Package otel binds credcore engine metrics to an OpenTelemetry Meter.
//
// Counters become Int64ObservableCounters named as in the Prometheus
// exporter. A latency histogram becomes a <name>_bucket gauge carrying one
// cumulative point per "le" attribute, plus a <name>_count counter.
//
// Callers own the MeterProvider and supply the Meter.
package otel
