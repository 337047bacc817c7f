// Package internal contains helpers that are private to credcore.
//
// # Sub-packages
//
//   - appconfig: layered settings and logger setup for the binaries
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - dbx: the query interface shared by *sql.DB and *sql.Tx
//   - flows: pure-function orchestration for Login, Refresh and Logout
//   - metrics: lock-free counters and latency histograms
//   - security: the configuration report returned by Engine.SecurityReport
package internal
