package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T, mutate func(*Config)) *Signer {
	t.Helper()
	cfg := Config{
		Secret:    testSecret,
		Issuer:    "credcore",
		Audience:  "api",
		AccessTTL: 15 * time.Minute,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSigner(cfg)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func testIdentity() Identity {
	return Identity{ID: "42", Username: "alice", Email: "alice@example.com", Role: "admin"}
}

func signRaw(t *testing.T, method gjwt.SigningMethod, key interface{}, claims AccessClaims) string {
	t.Helper()
	tok, err := gjwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func validClaims(now time.Time) AccessClaims {
	return AccessClaims{
		Username: "alice",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "credcore",
			Audience:  gjwt.ClaimStrings{"api"},
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
}

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	for _, secret := range [][]byte{nil, {}} {
		_, err := NewSigner(Config{Secret: secret, AccessTTL: time.Minute})
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	}
}

func TestNewSignerRejectsBadDurations(t *testing.T) {
	cases := []Config{
		{Secret: testSecret, AccessTTL: 0},
		{Secret: testSecret, AccessTTL: time.Minute, Leeway: -time.Second},
		{Secret: testSecret, AccessTTL: time.Minute, Leeway: 3 * time.Minute},
		{Secret: testSecret, AccessTTL: time.Minute, MaxFutureIAT: 25 * time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewSigner(cfg); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("case %d: expected ErrConfiguration, got %v", i, err)
		}
	}
}

func TestNewSignerCopiesSecret(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	s, err := NewSigner(Config{Secret: secret, AccessTTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	tok, _, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	secret[0] ^= 0xFF
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("caller mutation leaked into signer: %v", err)
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	s := newTestSigner(t, nil)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	tok, expiresAt, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiresAt %v", expiresAt)
	}

	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Identity() != testIdentity() {
		t.Fatalf("identity mismatch: %+v", claims.Identity())
	}
	if claims.Issuer != "credcore" || len(claims.Audience) != 1 || claims.Audience[0] != "api" {
		t.Fatalf("unexpected iss/aud: %q %v", claims.Issuer, claims.Audience)
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("unexpected iat: %v", claims.IssuedAt)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	s := newTestSigner(t, nil)
	if _, _, err := s.Issue(Identity{Username: "nobody"}); err == nil {
		t.Fatal("expected error for identity without subject")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s := newTestSigner(t, nil)
	other := newTestSigner(t, func(c *Config) { c.Secret = []byte("another-secret-another-secret-xx") })

	tok, _, err := other.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := s.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsTamperedClaims(t *testing.T) {
	s := newTestSigner(t, nil)
	tok, _, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(tok, ".")
	forged := signRaw(t, gjwt.SigningMethodHS256, []byte("x"), AccessClaims{
		Username:         "mallory",
		Role:             "admin",
		RegisteredClaims: validClaims(time.Now()).RegisteredClaims,
	})
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, err := s.Verify(spliced); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsAlgorithmSubstitution(t *testing.T) {
	s := newTestSigner(t, nil)
	claims := validClaims(time.Now())

	hs384 := signRaw(t, gjwt.SigningMethodHS384, testSecret, claims)
	hs512 := signRaw(t, gjwt.SigningMethodHS512, testSecret, claims)
	none := signRaw(t, gjwt.SigningMethodNone, gjwt.UnsafeAllowNoneSignatureType, claims)

	for name, tok := range map[string]string{"HS384": hs384, "HS512": hs512, "none": none} {
		if _, err := s.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
		if _, err := s.Verify(tok, WithoutExpiryCheck()); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s without expiry check: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	s := newTestSigner(t, nil)
	now := time.Now()

	wrongIssuer := validClaims(now)
	wrongIssuer.Issuer = "other"
	wrongAudience := validClaims(now)
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}

	for name, claims := range map[string]AccessClaims{"issuer": wrongIssuer, "audience": wrongAudience} {
		tok := signRaw(t, gjwt.SigningMethodHS256, testSecret, claims)
		if _, err := s.Verify(tok); err == nil {
			t.Fatalf("expected wrong %s to fail", name)
		}
		if _, err := s.Verify(tok, WithoutExpiryCheck()); err == nil {
			t.Fatalf("expected wrong %s to fail without expiry check", name)
		}
	}
}

func TestVerifyExpiryCanBeSuppressed(t *testing.T) {
	s := newTestSigner(t, nil)
	issuedAt := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issuedAt }

	tok, _, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	s.now = time.Now

	if _, err := s.Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	claims, err := s.Verify(tok, WithoutExpiryCheck())
	if err != nil {
		t.Fatalf("expected expired token to pass without expiry check: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestVerifyLeeway(t *testing.T) {
	s := newTestSigner(t, func(c *Config) { c.Leeway = 30 * time.Second })
	now := time.Now()

	within := validClaims(now.Add(-time.Minute))
	within.ExpiresAt = gjwt.NewNumericDate(now.Add(-15 * time.Second))
	if _, err := s.Verify(signRaw(t, gjwt.SigningMethodHS256, testSecret, within)); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	outside := validClaims(now.Add(-3 * time.Minute))
	outside.ExpiresAt = gjwt.NewNumericDate(now.Add(-2 * time.Minute))
	if _, err := s.Verify(signRaw(t, gjwt.SigningMethodHS256, testSecret, outside)); err == nil {
		t.Fatal("expected token outside leeway to fail")
	}
}

func TestVerifyRejectsMissingExpiryAndSubject(t *testing.T) {
	s := newTestSigner(t, nil)
	now := time.Now()

	noExp := validClaims(now)
	noExp.ExpiresAt = nil
	if _, err := s.Verify(signRaw(t, gjwt.SigningMethodHS256, testSecret, noExp)); err == nil {
		t.Fatal("expected token without exp to fail")
	}

	noSub := validClaims(now)
	noSub.Subject = ""
	if _, err := s.Verify(signRaw(t, gjwt.SigningMethodHS256, testSecret, noSub)); err == nil {
		t.Fatal("expected token without sub to fail")
	}
}

func TestVerifyRejectsFutureIssuedAt(t *testing.T) {
	s := newTestSigner(t, func(c *Config) { c.MaxFutureIAT = time.Minute })
	claims := validClaims(time.Now().Add(time.Hour))
	claims.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(2 * time.Hour))
	if _, err := s.Verify(signRaw(t, gjwt.SigningMethodHS256, testSecret, claims)); err == nil {
		t.Fatal("expected future iat to fail")
	}
}
