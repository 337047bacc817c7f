// Package redisstore implements refresh.Store on Redis.
//
// # Key layout
//
//	<prefix>:rt:<hex sha256(value)>   hash: id sub fam created expires used used_at revoked revoked_at
//	<prefix>:sub:<subject>            set of value digests issued to the subject
//	<prefix>:cut:<subject>            latest RevokeAllForSubject cutoff
//
// Timestamps are stored as Unix microseconds. Every mutating operation runs as a
// single Lua script, so MarkUsed is a compare-and-set on "unused and not
// revoked", and Create refuses records at or before the subject cutoff that
// RevokeAllForSubject leaves behind. The revoke-all script touches token keys that
// are not declared in KEYS, which rules out Redis Cluster deployments.
//
// By default keys never expire: expiry is decided when a token is read. Setting
// Options.Retention lets Redis drop token keys that long after ExpiresAt, after
// which they read as unknown instead of expired.
//
// # What this package must NOT do
//
//   - Store plaintext refresh values.
//   - Implement rotation policy; that belongs to refresh.Rotator.
package redisstore
