package credcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	internalaudit "github.com/MrEthical07/credcore/internal/audit"
	"github.com/MrEthical07/credcore/internal/flows"
	internalmetrics "github.com/MrEthical07/credcore/internal/metrics"
	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/password"
	"github.com/MrEthical07/credcore/refresh"
)

// Engine coordinates login, refresh and logout. It holds no per-request
// mutable state and is safe for concurrent use.
type Engine struct {
	config   Config
	signer   *jwt.Signer
	rotator  *refresh.Rotator
	users    UserDirectory
	updater  PasswordHashUpdater
	verifier PasswordVerifier
	hasher   PasswordHasher
	audit    *internalaudit.Dispatcher
	metrics  *internalmetrics.Metrics
	flows    flows.Deps

	// dummyHash is verified for unknown usernames.
	dummyHash string
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counter and histogram values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTTL returns the configured access token lifetime.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (e *Engine) RefreshTTL() time.Duration {
	return e.config.Refresh.TTL
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) buildFlowDeps() flows.Deps {
	isUserNotFound := func(err error) bool { return errors.Is(err, ErrUserNotFound) }

	login := flows.LoginDeps{
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DummyHash:      e.dummyHash,
		FindUser: func(ctx context.Context, username string) (flows.LoginUser, error) {
			u, err := e.users.FindByUsername(ctx, username)
			if err != nil {
				return flows.LoginUser{}, err
			}
			return flows.LoginUser{Identity: u.Identity, PasswordHash: u.PasswordHash}, nil
		},
		IsUserNotFound: isUserNotFound,
		VerifyPassword: func(pass, encodedHash string) (password.Result, error) {
			return e.verifier.Verify(pass, encodedHash)
		},
		IssueAccess:   e.signer.Issue,
		IssueRefresh:  e.rotator.IssueInitial,
		RevokeRefresh: e.rotator.Revoke,
	}
	if e.updater != nil && e.hasher != nil {
		login.HashPassword = e.hasher.Hash
		login.UpdatePasswordHash = e.updater.UpdatePasswordHash
	}

	return flows.Deps{
		Login: login,
		Refresh: flows.RefreshDeps{
			Lookup: e.rotator.Lookup,
			FindUserByID: func(ctx context.Context, id string) (jwt.Identity, error) {
				u, err := e.users.FindByID(ctx, id)
				if err != nil {
					return jwt.Identity{}, err
				}
				return u.Identity, nil
			},
			IsUserNotFound: isUserNotFound,
			Revoke:         e.rotator.Revoke,
			Rotate:         e.rotator.Rotate,
			IssueAccess:    e.signer.Issue,
		},
		Logout: flows.LogoutDeps{
			Lookup: e.rotator.Lookup,
			Revoke: e.rotator.Revoke,
		},
		Validate: flows.ValidateDeps{
			Verify: e.signer.Verify,
			Now:    time.Now,
		},
	}
}

// Login authenticates username and password and issues a new session. An
// unknown user and a wrong password both return [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, username, pass string) (*Session, error) {
	if e == nil || e.signer == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, username, pass, e.flows.Login)
	pass = ""

	if res.RehashErr != nil || res.Rehashed {
		if res.Rehashed {
			e.metricInc(MetricLoginRehash)
		}
		e.emitAudit(ctx, AuditEvent{EventType: AuditEventPasswordRehash, UserID: res.User.ID}, res.RehashErr)
	}

	if res.Failure != flows.LoginFailureNone {
		err := res.Err
		switch res.Failure {
		case flows.LoginFailureEmptyInput, flows.LoginFailureUnknownUser, flows.LoginFailurePasswordMismatch, flows.LoginFailureVerify:
			err = ErrInvalidCredentials
		case flows.LoginFailureLookup, flows.LoginFailureIssueRefresh:
			err = asUnavailable(err)
			e.metricInc(MetricStorageUnavailable)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditEventLoginFailure,
			UserID:    res.User.ID,
			Metadata: map[string]string{
				"identifier": res.Username,
				"reason":     loginFailureReason(res.Failure),
			},
		}, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditEventLoginSuccess,
		UserID:    res.User.ID,
		FamilyID:  res.Refresh.FamilyID.String(),
	}, nil)

	return &Session{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.Refresh.Value,
		RefreshExpiresAt: res.Refresh.ExpiresAt,
		User:             res.User,
	}, nil
}

// Refresh exchanges a refresh token for a new session. The presented token is
// consumed. Presenting a consumed token revokes every refresh token of its
// subject and returns [ErrTokenReuseDetected].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if e == nil || e.rotator == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRefreshLatency, time.Since(start))
	}

	event := AuditEvent{EventType: AuditEventRefreshSuccess}
	if res.Presented != nil {
		event.UserID = res.Presented.SubjectID
		event.FamilyID = res.Presented.FamilyID.String()
	}

	if res.Failure != flows.RefreshFailureNone {
		err := res.Err
		if res.Failure == flows.RefreshFailureUserLookup {
			err = asUnavailable(err)
		}
		e.recordRefreshFailure(ctx, event, res.Outcome.RevokedCount, err)
		return nil, err
	}

	next := res.Outcome.Next
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, event, nil)

	return &Session{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     next.Value,
		RefreshExpiresAt: next.ExpiresAt,
		User:             res.User,
	}, nil
}

// recordRefreshFailure counts and audits a failed refresh. event carries the
// presented token's subject and family when the token was found.
func (e *Engine) recordRefreshFailure(ctx context.Context, event AuditEvent, revoked int, err error) {
	event.EventType = AuditEventRefreshFailure
	switch {
	case errors.Is(err, ErrTokenReuseDetected):
		e.metricInc(MetricRefreshReuseDetected)
		if e.metrics != nil {
			e.metrics.Add(MetricTokensRevokedOnReuse, uint64(revoked))
		}
		event.EventType = AuditEventRefreshReuseDetected
		event.Metadata = map[string]string{"revoked": strconv.Itoa(revoked)}
	case errors.Is(err, ErrTokenExpired):
		e.metricInc(MetricRefreshExpired)
	case errors.Is(err, ErrStorageUnavailable):
		e.metricInc(MetricStorageUnavailable)
	default:
		e.metricInc(MetricRefreshInvalid)
	}
	e.emitAudit(ctx, event, err)
}

// Logout revokes refreshToken when it is known. It never reports token
// validity problems; unknown, expired or revoked values succeed. Storage
// failures are audited, not returned.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.rotator == nil {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	e.metricInc(MetricLogout)
	if res.Err != nil {
		e.metricInc(MetricStorageUnavailable)
	}
	if res.Known || res.Err != nil {
		e.emitAudit(ctx, AuditEvent{EventType: AuditEventLogout, UserID: res.SubjectID, FamilyID: res.FamilyID}, res.Err)
	}
	return nil
}

// RevokeAll revokes every refresh token of subjectID and returns how many were
// changed.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string) (int, error) {
	if e == nil || e.rotator == nil {
		return 0, ErrEngineNotReady
	}
	if subjectID == "" {
		return 0, ErrUserNotFound
	}
	n, err := e.rotator.RevokeAll(ctx, subjectID)
	if err != nil {
		e.metricInc(MetricStorageUnavailable)
		err = asUnavailable(err)
	}
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditEventRevokeAll,
		UserID:    subjectID,
		Metadata:  map[string]string{"revoked": strconv.Itoa(n)},
	}, err)
	return n, err
}

// ValidateAccess verifies an access token and returns its claims. Failures
// match [ErrAccessTokenInvalid]. Pass jwt.WithoutExpiryCheck() to accept
// expired tokens.
func (e *Engine) ValidateAccess(token string, opts ...jwt.VerifyOption) (*AccessClaims, error) {
	if e == nil || e.signer == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunValidate(token, e.flows.Validate, opts...)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, res.Elapsed)
	}
	if res.Failure != flows.ValidateFailureNone {
		e.metricInc(MetricAccessValidateFailure)
		return nil, res.Err
	}
	e.metricInc(MetricAccessValidateSuccess)
	return res.Claims, nil
}

// HashPassword encodes pass with the engine's password hasher, for
// provisioning users outside the login flow.
func (e *Engine) HashPassword(pass string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(pass)
}

func asUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func loginFailureReason(kind flows.LoginFailureKind) string {
	switch kind {
	case flows.LoginFailureEmptyInput:
		return "empty_input"
	case flows.LoginFailureUnknownUser:
		return "user_not_found"
	case flows.LoginFailurePasswordMismatch:
		return "password_mismatch"
	case flows.LoginFailureVerify:
		return "hash_unreadable"
	case flows.LoginFailureLookup:
		return "user_lookup_failed"
	case flows.LoginFailureIssueAccess:
		return "access_issue_failed"
	case flows.LoginFailureIssueRefresh:
		return "refresh_issue_failed"
	default:
		return "unknown"
	}
}
