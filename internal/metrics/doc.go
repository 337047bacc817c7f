// Package metrics records engine counters and latency histograms in fixed
// arrays of atomics. Writes never allocate or lock.
//
// Exporters under metrics/export read [Snapshot] values. This package does no
// I/O and keeps no global registry.
package metrics
