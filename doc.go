// Package credcore provides the credential core of an authentication service:
// username/password login, short-lived HS256 access tokens, and rotating opaque
// refresh tokens with reuse detection.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// credcore is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([Session], [Identity], [MetricsSnapshot]). Token signing lives in jwt/, refresh token
// rotation and its storage contract in refresh/, and storage backends in redisstore/ and
// pgstore/. Flow orchestration, audit dispatch, and metric storage live under internal/.
//
// # What this package must NOT do
//
//   - Expose backend clients or storage encoding in its public API.
//   - Perform I/O outside of Engine methods.
//   - Import any sub-package that re-imports credcore (no import cycles).
//
// # Refresh token lifecycle
//
// Every successful refresh consumes the presented token and returns a new one. Presenting
// a consumed token again is treated as theft: every refresh token of that subject is
// revoked and [ErrTokenReuseDetected] is returned.
package credcore
