package credcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/credcore/internal/audit"
	internalmetrics "github.com/MrEthical07/credcore/internal/metrics"
	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/password"
	"github.com/rs/zerolog"
)

// Identity is the user snapshot carried by access tokens and returned on login
// and refresh.
type Identity = jwt.Identity

// AccessClaims are the verified claims of an access token.
type AccessClaims = jwt.AccessClaims

// UserRecord is a user as stored by a [UserDirectory].
type UserRecord struct {
	Identity
	PasswordHash string
}

// UserDirectory resolves users for login and refresh. Implementations return
// an error matching [ErrUserNotFound] when no user exists.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
	FindByID(ctx context.Context, id string) (UserRecord, error)
}

// PasswordHashUpdater is implemented by directories that can persist an
// upgraded password hash. When the configured [UserDirectory] also implements
// it, Login rewrites hashes reported as needing a rehash.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, encodedHash string) error
}

// PasswordVerifier checks a plaintext password against a stored hash and
// reports Match, Mismatch or NeedsRehash.
type PasswordVerifier = password.Verifier

// PasswordHasher produces hashes for rehash-on-login.
type PasswordHasher = password.Hasher

// Session is the credential set issued by Login and Refresh.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             Identity
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZerologSink is an [AuditSink] that writes events through a zerolog logger.
type ZerologSink = internalaudit.ZerologSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZerologSink creates a [ZerologSink]. Reuse detection is logged at error
// level, other failures at warn, successes at info.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return internalaudit.NewZerologSink(logger, AuditEventRefreshReuseDetected)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess          = internalmetrics.MetricLoginSuccess
	MetricLoginFailure          = internalmetrics.MetricLoginFailure
	MetricLoginRehash           = internalmetrics.MetricLoginRehash
	MetricRefreshSuccess        = internalmetrics.MetricRefreshSuccess
	MetricRefreshInvalid        = internalmetrics.MetricRefreshInvalid
	MetricRefreshExpired        = internalmetrics.MetricRefreshExpired
	MetricRefreshReuseDetected  = internalmetrics.MetricRefreshReuseDetected
	MetricTokensRevokedOnReuse  = internalmetrics.MetricTokensRevokedOnReuse
	MetricLogout                = internalmetrics.MetricLogout
	MetricStorageUnavailable    = internalmetrics.MetricStorageUnavailable
	MetricAccessValidateSuccess = internalmetrics.MetricAccessValidateSuccess
	MetricAccessValidateFailure = internalmetrics.MetricAccessValidateFailure
	MetricValidateLatency       = internalmetrics.MetricValidateLatency
	MetricRefreshLatency        = internalmetrics.MetricRefreshLatency
)

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot
