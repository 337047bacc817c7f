package flows

import (
	"time"

	"github.com/MrEthical07/credcore/jwt"
)

// ValidateFailureKind classifies access token validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureEmpty
	ValidateFailureInvalid
)

// ValidateResult returns either the verified claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
	Elapsed time.Duration
}

// ValidateDeps captures access token validation dependencies.
type ValidateDeps struct {
	Verify func(string, ...jwt.VerifyOption) (*jwt.AccessClaims, error)
	Now    func() time.Time
}

// RunValidate verifies an access token. opts are passed through to the signer.
func RunValidate(token string, deps ValidateDeps, opts ...jwt.VerifyOption) ValidateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	start := deps.Now()
	if token == "" {
		return ValidateResult{Failure: ValidateFailureEmpty, Err: jwt.ErrTokenInvalid}
	}

	claims, err := deps.Verify(token, opts...)
	elapsed := deps.Now().Sub(start)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err, Elapsed: elapsed}
	}
	return ValidateResult{Claims: claims, Elapsed: elapsed}
}
