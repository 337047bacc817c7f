package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/credcore/refresh"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Lookup func(ctx context.Context, value string) (*refresh.Record, error)
	Revoke func(ctx context.Context, value string) error
}

// LogoutResult describes what logout did. Logout never fails from the caller's
// point of view; Err is for audit only.
type LogoutResult struct {
	Known     bool
	SubjectID string
	FamilyID  string
	Err       error
}

// RunLogout revokes value when it is known. Unknown, empty, expired or already
// revoked values are accepted silently.
func RunLogout(ctx context.Context, value string, deps LogoutDeps) LogoutResult {
	if value == "" {
		return LogoutResult{}
	}

	rec, err := deps.Lookup(ctx, value)
	if err != nil {
		if errors.Is(err, refresh.ErrTokenInvalid) {
			return LogoutResult{}
		}
		return LogoutResult{Err: err}
	}

	out := LogoutResult{Known: true, SubjectID: rec.SubjectID, FamilyID: rec.FamilyID.String()}
	if rec.Revoked {
		return out
	}
	if err := deps.Revoke(ctx, value); err != nil && !errors.Is(err, refresh.ErrTokenInvalid) {
		out.Err = err
	}
	return out
}
