package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no record matches the value.
	ErrNotFound = errors.New("refresh token not found")
	// ErrConflict is returned by Store.Create when the value already exists.
	ErrConflict = errors.New("refresh token value conflict")
	// ErrSubjectRevoked is returned by Store.Create when the record was created
	// at or before the subject's latest RevokeAllForSubject cutoff.
	ErrSubjectRevoked = errors.New("refresh token predates subject revocation")
	// ErrStorageUnavailable wraps every backend failure reported by a Store.
	ErrStorageUnavailable = errors.New("refresh token storage unavailable")

	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("refresh token invalid")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenReuseDetected is an exported constant or variable used by the authentication engine.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
)

// Store persists refresh token records.
//
// Implementations must satisfy the following contract:
//   - Create fails with ErrConflict when a record with the same value exists,
//     and with ErrSubjectRevoked when rec.CreatedAt is at or before the latest
//     cutoff passed to RevokeAllForSubject for rec.SubjectID. Neither failure
//     stores anything.
//   - FindByValue returns ErrNotFound when no record matches.
//   - MarkUsed is a compare-and-set: it returns true only for the call that
//     moved the record from unused and unrevoked to used. Calls on a used or
//     revoked record return false and change nothing. Unknown values fail
//     with ErrNotFound.
//   - MarkRevoked is idempotent and keeps the first RevokedAt.
//   - RevokeAllForSubject revokes, as one logical batch, every non-revoked
//     record of the subject created at or before at, and returns how many
//     records it changed. It also remembers at as the subject's cutoff (the
//     latest one wins) so that a Create racing the batch cannot leave behind
//     a live record that the batch should have covered.
//   - Backend failures are wrapped with ErrStorageUnavailable.
type Store interface {
	Create(ctx context.Context, rec Record) error
	FindByValue(ctx context.Context, value string) (*Record, error)
	MarkUsed(ctx context.Context, value string, at time.Time) (bool, error)
	MarkRevoked(ctx context.Context, value string, at time.Time) error
	RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) (int, error)
}
