// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunValidate) accepts a
// typed dependency struct and returns a result struct with a classified failure.
// The Engine maps failures onto public errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the user directory, password verifier,
// signer and refresh rotator. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import credcore (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
