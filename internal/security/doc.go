// Package security derives a security posture report from engine
// configuration values.
//
// # What this package must NOT do
//
//   - Import credcore or read secrets; it only sees lengths and flags.
package security
