// Package pgstore implements refresh.Store and credcore.UserDirectory on
// PostgreSQL through the pgx database/sql driver.
//
// The schema lives in the embedded goose migrations under migrations/ and is
// applied with Migrate. Refresh values are stored as their SHA-256 digest in
// token_hash. MarkUsed and MarkRevoked are conditional UPDATEs, so concurrent
// callers race on the row lock and exactly one observes the transition;
// MarkUsed also skips revoked rows.
//
// RevokeAllForSubject raises the subject's cutoff in subject_revocations and
// revokes in one transaction. Create locks the same row before inserting and
// refuses records at or before the cutoff, so a token created while a sweep
// runs is either revoked by it or never stored.
package pgstore
