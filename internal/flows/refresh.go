package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/refresh"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureLookup
	RefreshFailureUserLookup
	RefreshFailureUserGone
	RefreshFailureRotate
	RefreshFailureIssueAccess
)

// RefreshResult carries either the rotated credentials or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	// Outcome is set once rotation ran.
	Outcome         refresh.Outcome
	Presented       *refresh.Record
	User            jwt.Identity
	AccessToken     string
	AccessExpiresAt time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Lookup         func(ctx context.Context, value string) (*refresh.Record, error)
	FindUserByID   func(ctx context.Context, id string) (jwt.Identity, error)
	IsUserNotFound func(error) bool
	Revoke         func(ctx context.Context, value string) error
	Rotate         func(ctx context.Context, value, expectedSubject string) refresh.Outcome
	IssueAccess    func(jwt.Identity) (string, time.Time, error)
}

// RunRefresh resolves the subject owning value, reloads its identity, rotates
// the token, and signs a fresh access token.
func RunRefresh(ctx context.Context, value string, deps RefreshDeps) RefreshResult {
	rec, err := deps.Lookup(ctx, value)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureLookup, Err: err}
	}

	user, err := deps.FindUserByID(ctx, rec.SubjectID)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			// The subject no longer exists; the presented token must not outlive it.
			_ = deps.Revoke(ctx, value)
			return RefreshResult{Failure: RefreshFailureUserGone, Err: refresh.ErrTokenInvalid, Presented: rec}
		}
		return RefreshResult{Failure: RefreshFailureUserLookup, Err: err, Presented: rec}
	}

	outcome := deps.Rotate(ctx, value, rec.SubjectID)
	if outcome.Presented != nil {
		rec = outcome.Presented
	}
	if outcome.Kind != refresh.OutcomeRotated {
		return RefreshResult{
			Failure:   RefreshFailureRotate,
			Err:       outcome.Err(),
			Outcome:   outcome,
			Presented: rec,
			User:      user,
		}
	}

	access, expiresAt, err := deps.IssueAccess(user)
	if err != nil {
		// The replacement was never handed out.
		_ = deps.Revoke(ctx, outcome.Next.Value)
		return RefreshResult{
			Failure:   RefreshFailureIssueAccess,
			Err:       err,
			Outcome:   outcome,
			Presented: rec,
			User:      user,
		}
	}

	return RefreshResult{
		Failure:         RefreshFailureNone,
		Outcome:         outcome,
		Presented:       rec,
		User:            user,
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
	}
}

// IsTokenRejection reports whether err is one of the refresh token rejection
// errors rather than an infrastructure failure.
func IsTokenRejection(err error) bool {
	return errors.Is(err, refresh.ErrTokenInvalid) ||
		errors.Is(err, refresh.ErrTokenExpired) ||
		errors.Is(err, refresh.ErrTokenReuseDetected)
}
