// Package audit carries security events from the engine to a pluggable sink
// without putting sink latency on the login and refresh paths.
//
// The engine decides which events exist; this package only buffers and
// delivers them. Sinks provided here write to a channel, to newline-delimited
// JSON, or to a zerolog logger.
package audit
