package refresh

import (
	"time"

	"github.com/MrEthical07/credcore/internal"
	"github.com/google/uuid"
)

// Record is one issued refresh token.
//
// Used and Revoked are terminal: once set they are never cleared. UsedAt is
// non-nil exactly when Used is true, and RevokedAt exactly when Revoked is true.
type Record struct {
	ID        uuid.UUID
	Value     string
	SubjectID string
	// FamilyID links every token descended from one login.
	FamilyID  uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	Revoked   bool
	RevokedAt *time.Time
}

// Expired reports whether the record is past its expiry at now. A record whose
// ExpiresAt equals now is expired.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Active reports whether the record can still be exchanged at now.
func (r *Record) Active(now time.Time) bool {
	return !r.Used && !r.Revoked && !r.Expired(now)
}

// Digest returns the lookup key stores persist in place of the value.
func Digest(value string) [32]byte {
	return internal.HashRefreshValue(value)
}
