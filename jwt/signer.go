package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrConfiguration is returned by NewSigner when the signer cannot be built safely.
	ErrConfiguration = errors.New("invalid signer configuration")
	// ErrTokenInvalid wraps every verification failure.
	ErrTokenInvalid = errors.New("access token invalid")
)

// Config configures a Signer. Issuer and Audience are optional; when set they
// are written on issue and required on verify. MaxFutureIAT defaults to 10m.
type Config struct {
	Secret       []byte
	Issuer       string
	Audience     string
	AccessTTL    time.Duration
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// Identity is the subject snapshot embedded in an access token.
type Identity struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// AccessClaims is the access token payload: the registered claims plus the
// identity fields handlers read without a directory lookup.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the subject snapshot carried by the claims.
func (c *AccessClaims) Identity() Identity {
	return Identity{
		ID:       c.Subject,
		Username: c.Username,
		Email:    c.Email,
		Role:     c.Role,
	}
}

// Signer issues and verifies HS256 access tokens. It is safe for concurrent use.
type Signer struct {
	config Config
	now    func() time.Time
}

// VerifyOption adjusts a single Verify call.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	skipExpiry bool
}

// WithoutExpiryCheck accepts tokens whose exp has passed. Signature, algorithm,
// issuer and audience are still enforced.
func WithoutExpiryCheck() VerifyOption {
	return func(o *verifyOptions) {
		o.skipExpiry = true
	}
}

// NewSigner validates cfg and copies the secret. Configuration problems wrap
// ErrConfiguration.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret is empty", ErrConfiguration)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid TTL configuration", ErrConfiguration)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: invalid leeway configuration", ErrConfiguration)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, fmt.Errorf("%w: invalid MaxFutureIAT configuration", ErrConfiguration)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Signer{config: cfg, now: time.Now}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (s *Signer) AccessTTL() time.Duration {
	return s.config.AccessTTL
}

// Issue signs an access token for id and returns it with its expiry.
func (s *Signer) Issue(id Identity) (string, time.Time, error) {
	if id.ID == "" {
		return "", time.Time{}, errors.New("identity has no subject")
	}

	now := s.now()
	expiresAt := now.Add(s.config.AccessTTL)

	claims := AccessClaims{
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	// exp is serialized at second precision.
	return token, expiresAt.Truncate(time.Second), nil
}

// Verify parses tokenStr, accepting HS256 only, and checks signature, expiry,
// issuer, audience, subject and iat. Every failure wraps ErrTokenInvalid.
func (s *Signer) Verify(tokenStr string, opts ...VerifyOption) (*AccessClaims, error) {
	var vo verifyOptions
	for _, opt := range opts {
		opt(&vo)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if vo.skipExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		options = append(options, jwt.WithExpirationRequired())
		if s.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(s.config.Leeway))
		}
		if s.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(s.config.Issuer))
		}
		if s.config.Audience != "" {
			options = append(options, jwt.WithAudience(s.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if vo.skipExpiry {
		if err := s.checkIssuerAudience(claims); err != nil {
			return nil, err
		}
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(s.now().Add(s.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: token iat too far in the future", ErrTokenInvalid)
	}

	return claims, nil
}

// checkIssuerAudience repeats the parser's iss/aud checks for the
// WithoutExpiryCheck path, where claims validation is disabled wholesale.
func (s *Signer) checkIssuerAudience(claims *AccessClaims) error {
	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, jwt.ErrTokenInvalidIssuer)
	}
	if s.config.Audience == "" {
		return nil
	}
	for _, aud := range claims.Audience {
		if aud == s.config.Audience {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, jwt.ErrTokenInvalidAudience)
}
