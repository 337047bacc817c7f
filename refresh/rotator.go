package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credcore/internal"
	"github.com/google/uuid"
)

const maxCreateAttempts = 3

// Rotator issues, rotates and revokes refresh tokens on top of a Store.
type Rotator struct {
	store  Store
	config Config
	now    func() time.Time
}

// NewRotator validates cfg and returns a Rotator over store.
func NewRotator(store Store, cfg Config) (*Rotator, error) {
	if store == nil {
		return nil, errors.New("refresh store is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Rotator{store: store, config: cfg, now: time.Now}, nil
}

// TTL returns the lifetime given to newly issued tokens.
func (r *Rotator) TTL() time.Duration {
	return r.config.TTL
}

// IssueInitial creates the first token of a new family for subjectID.
func (r *Rotator) IssueInitial(ctx context.Context, subjectID string) (*Record, error) {
	if subjectID == "" {
		return nil, errors.New("subject id is empty")
	}
	family := uuid.New()
	var err error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var rec *Record
		// A sweep of the subject that lands between reading the clock and
		// the write rejects the record; a later timestamp clears the cutoff.
		rec, err = r.create(ctx, subjectID, family, r.now())
		if !errors.Is(err, ErrSubjectRevoked) {
			return rec, err
		}
	}
	return nil, err
}

// Lookup returns the stored record for value. Unknown values report
// ErrTokenInvalid.
func (r *Rotator) Lookup(ctx context.Context, value string) (*Record, error) {
	if value == "" {
		return nil, ErrTokenInvalid
	}
	rec, err := r.store.FindByValue(ctx, value)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Rotate exchanges value for a new token.
//
// The checks run in this order and the first match decides the outcome:
// unknown value, subject mismatch (only when expectedSubject is non-empty),
// revoked, expired, already used, otherwise rotated. An already-used value
// revokes every token of its subject. A revocation of the subject that
// overlaps the rotation makes it fail as invalid and leaves no live
// replacement behind.
func (r *Rotator) Rotate(ctx context.Context, value, expectedSubject string) Outcome {
	if value == "" {
		return Outcome{Kind: OutcomeInvalid}
	}

	rec, err := r.store.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Outcome{Kind: OutcomeInvalid}
		}
		return Outcome{Kind: OutcomeUnavailable, Cause: err}
	}

	if expectedSubject != "" && rec.SubjectID != expectedSubject {
		return Outcome{Kind: OutcomeInvalid, Presented: rec}
	}
	if rec.Revoked {
		return Outcome{Kind: OutcomeInvalid, Presented: rec}
	}
	now := r.now()
	if rec.Expired(now) {
		return Outcome{Kind: OutcomeExpired, Presented: rec}
	}
	if rec.Used {
		return r.reuseDetected(ctx, rec)
	}

	next, err := r.create(ctx, rec.SubjectID, rec.FamilyID, now)
	if errors.Is(err, ErrSubjectRevoked) {
		// The subject was swept after rec was read.
		return r.lostRace(ctx, value, rec)
	}
	if err != nil {
		return Outcome{Kind: OutcomeUnavailable, Presented: rec, Cause: err}
	}

	swapped, err := r.store.MarkUsed(ctx, value, now)
	if err != nil {
		// Best effort: the replacement was never handed out.
		_ = r.store.MarkRevoked(ctx, next.Value, now)
		if errors.Is(err, ErrNotFound) {
			return Outcome{Kind: OutcomeInvalid, Presented: rec}
		}
		return Outcome{Kind: OutcomeUnavailable, Presented: rec, Cause: err}
	}
	if !swapped {
		_ = r.store.MarkRevoked(ctx, next.Value, now)
		return r.lostRace(ctx, value, rec)
	}

	return Outcome{Kind: OutcomeRotated, Next: next, Presented: rec}
}

// Revoke marks value revoked. Revoking an already revoked value succeeds;
// unknown values fail with ErrTokenInvalid.
func (r *Rotator) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return ErrTokenInvalid
	}
	err := r.store.MarkRevoked(ctx, value, r.now())
	if errors.Is(err, ErrNotFound) {
		return ErrTokenInvalid
	}
	return err
}

// RevokeAll revokes every token of subjectID and returns how many changed.
func (r *Rotator) RevokeAll(ctx context.Context, subjectID string) (int, error) {
	return r.store.RevokeAllForSubject(ctx, subjectID, r.now())
}

func (r *Rotator) reuseDetected(ctx context.Context, rec *Record) Outcome {
	// The cutoff is read after the used flag was observed, so it is never
	// earlier than the CreatedAt of the token that consumed rec.
	n, err := r.store.RevokeAllForSubject(ctx, rec.SubjectID, r.now())
	return Outcome{
		Kind:         OutcomeReuseDetected,
		Presented:    rec,
		RevokedCount: n,
		Cause:        err,
	}
}

// lostRace decides the outcome once value changed after the first read:
// either a concurrent rotation consumed it, which is reuse, or only a
// revocation reached it.
func (r *Rotator) lostRace(ctx context.Context, value string, rec *Record) Outcome {
	cur, err := r.store.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Outcome{Kind: OutcomeInvalid, Presented: rec}
		}
		return Outcome{Kind: OutcomeUnavailable, Presented: rec, Cause: err}
	}
	if cur.Used {
		return r.reuseDetected(ctx, cur)
	}
	return Outcome{Kind: OutcomeInvalid, Presented: cur}
}

func (r *Rotator) create(ctx context.Context, subjectID string, family uuid.UUID, now time.Time) (*Record, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		value, err := internal.NewRefreshValue(r.config.ValueBytes)
		if err != nil {
			return nil, err
		}
		rec := Record{
			ID:        uuid.New(),
			Value:     value,
			SubjectID: subjectID,
			FamilyID:  family,
			CreatedAt: now,
			ExpiresAt: now.Add(r.config.TTL),
		}
		err = r.store.Create(ctx, rec)
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %d attempts", ErrConflict, maxCreateAttempts)
}
