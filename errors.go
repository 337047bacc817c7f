package credcore

import (
	"errors"

	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/refresh"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by UserDirectory implementations when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrConfiguration is returned by Build when the configuration cannot be used safely.
	ErrConfiguration = jwt.ErrConfiguration
	// ErrAccessTokenInvalid wraps every access token verification failure.
	ErrAccessTokenInvalid = jwt.ErrTokenInvalid

	// ErrTokenInvalid is returned for unknown, revoked or foreign refresh tokens.
	ErrTokenInvalid = refresh.ErrTokenInvalid
	// ErrTokenExpired is returned for refresh tokens past their expiry.
	ErrTokenExpired = refresh.ErrTokenExpired
	// ErrTokenReuseDetected is returned when an already consumed refresh token is presented.
	ErrTokenReuseDetected = refresh.ErrTokenReuseDetected
	// ErrStorageUnavailable wraps refresh token and user storage failures.
	ErrStorageUnavailable = refresh.ErrStorageUnavailable
	// ErrConflict is returned by stores when a generated refresh value already exists.
	ErrConflict = refresh.ErrConflict
)
