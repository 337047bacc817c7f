// Package prometheus renders credcore engine metrics in Prometheus text
// exposition format.
//
// Counters are named credcore_*_total. Validation and refresh latency are
// exported as histograms credcore_validate_latency_seconds and
// credcore_refresh_latency_seconds. Nothing is registered globally; callers
// mount Handler where they want it.
package prometheus
