package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/password"
	"github.com/MrEthical07/credcore/refresh"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureEmptyInput
	LoginFailureUnknownUser
	LoginFailurePasswordMismatch
	LoginFailureLookup
	LoginFailureVerify
	LoginFailureIssueAccess
	LoginFailureIssueRefresh
)

// LoginUser is the flow-local user model.
type LoginUser struct {
	Identity     jwt.Identity
	PasswordHash string
}

// LoginResult carries either the issued credentials or failure metadata.
type LoginResult struct {
	Failure         LoginFailureKind
	Err             error
	Username        string
	User            jwt.Identity
	AccessToken     string
	AccessExpiresAt time.Time
	Refresh         *refresh.Record

	// Rehash reports what happened to a NeedsRehash verification.
	Rehashed  bool
	RehashErr error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	UpgradeOnLogin bool
	// DummyHash is verified against when the user does not exist, so unknown
	// and known usernames cost the same password work.
	DummyHash string

	FindUser           func(ctx context.Context, username string) (LoginUser, error)
	IsUserNotFound     func(error) bool
	VerifyPassword     func(password, encodedHash string) (password.Result, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, encodedHash string) error
	IssueAccess        func(jwt.Identity) (string, time.Time, error)
	IssueRefresh       func(ctx context.Context, subjectID string) (*refresh.Record, error)
	RevokeRefresh      func(ctx context.Context, value string) error
}

// RunLogin authenticates username/password and issues the first refresh token
// of a new family, then an access token. A refresh token whose access token
// could not be signed is revoked before returning. Unknown users and wrong passwords are
// distinguished only by Failure; callers must report both the same way.
func RunLogin(ctx context.Context, username, pass string, deps LoginDeps) LoginResult {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return LoginResult{Failure: LoginFailureEmptyInput, Username: username}
	}

	user, err := deps.FindUser(ctx, username)
	if err != nil {
		if deps.IsUserNotFound != nil && deps.IsUserNotFound(err) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(pass, deps.DummyHash)
			}
			return LoginResult{Failure: LoginFailureUnknownUser, Username: username}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err, Username: username}
	}

	res, err := deps.VerifyPassword(pass, user.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerify, Err: err, Username: username, User: user.Identity}
	}
	if !res.Authenticated() {
		return LoginResult{Failure: LoginFailurePasswordMismatch, Username: username, User: user.Identity}
	}

	out := LoginResult{Username: username, User: user.Identity}

	if res == password.NeedsRehash && deps.UpgradeOnLogin && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		upgraded, err := deps.HashPassword(pass)
		if err == nil {
			err = deps.UpdatePasswordHash(ctx, user.Identity.ID, upgraded)
		}
		out.Rehashed = err == nil
		out.RehashErr = err
	}

	rec, err := deps.IssueRefresh(ctx, user.Identity.ID)
	if err != nil {
		out.Failure = LoginFailureIssueRefresh
		out.Err = err
		return out
	}

	access, expiresAt, err := deps.IssueAccess(user.Identity)
	if err != nil {
		if deps.RevokeRefresh != nil {
			_ = deps.RevokeRefresh(ctx, rec.Value)
		}
		out.Failure = LoginFailureIssueAccess
		out.Err = err
		return out
	}

	out.AccessToken = access
	out.AccessExpiresAt = expiresAt
	out.Refresh = rec
	return out
}
