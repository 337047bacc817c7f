// Package refresh owns opaque rotating refresh tokens: the persisted record, the
// store contract, and the rotation state machine.
//
// # Token format
//
// A refresh value is at least 32 random bytes encoded as base64url without
// padding. Values are never stored in plaintext. Every store keys its records by
// the SHA-256 digest of the value (see Digest).
//
// # Rotation
//
// Rotator.Rotate evaluates the presented value in a fixed order and reports the
// result as an Outcome. Any presentation of an already-used value is treated as
// theft: every token of the subject is revoked. The replacement token is created
// before the presented one is marked used, so a crash in between leaves two live
// tokens rather than none.
//
// # Architecture boundaries
//
// Stores implement Store and must make MarkUsed a compare-and-set. The Rotator
// keeps no mutable state of its own and is safe for concurrent use.
//
// # What this package must NOT do
//
//   - Issue or verify access tokens.
//   - Import credcore, jwt, or any concrete backend.
package refresh
