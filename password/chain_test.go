package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastArgon2(t *testing.T) *Argon2 {
	t.Helper()
	a, err := NewArgon2(Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	return a
}

func TestBcryptVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	hash, err := b.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if res, err := b.Verify("legacy-password", hash); err != nil || res != Match {
		t.Fatalf("expected Match, res=%v err=%v", res, err)
	}
	if res, err := b.Verify("wrong-password", hash); err != nil || res != Mismatch {
		t.Fatalf("expected Mismatch, res=%v err=%v", res, err)
	}
	if _, err := b.Verify("legacy-password", "$2a$garbage"); err == nil {
		t.Fatal("expected malformed bcrypt hash to error")
	}
}

func TestBcryptLowCostNeedsRehash(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword error: %v", err)
	}
	b, err := NewBcrypt(bcrypt.MinCost + 1)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if res, err := b.Verify("legacy-password", string(weak)); err != nil || res != NeedsRehash {
		t.Fatalf("expected NeedsRehash, res=%v err=%v", res, err)
	}
}

func TestNewBcryptRejectsCost(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected out-of-range cost to fail")
	}
}

func TestChainDispatch(t *testing.T) {
	primary := fastArgon2(t)
	legacy, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	chain := NewChain(primary, legacy)

	argonHash, err := chain.Hash("current-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if res, err := chain.Verify("current-password", argonHash); err != nil || res != Match {
		t.Fatalf("argon2 hash: res=%v err=%v", res, err)
	}

	bcryptHash, err := legacy.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if res, err := chain.Verify("legacy-password", bcryptHash); err != nil || res != NeedsRehash {
		t.Fatalf("bcrypt hash must migrate: res=%v err=%v", res, err)
	}
	if res, err := chain.Verify("wrong-password", bcryptHash); err != nil || res != Mismatch {
		t.Fatalf("bcrypt wrong password: res=%v err=%v", res, err)
	}

	if _, err := chain.Verify("x", "plaintext"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
	if _, err := NewChain(primary, nil).Verify("legacy-password", bcryptHash); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash without legacy verifier, got %v", err)
	}
}

func TestResultAuthenticated(t *testing.T) {
	var zero Result
	if zero.Authenticated() || zero != Mismatch {
		t.Fatal("zero Result must be Mismatch")
	}
	if !Match.Authenticated() || !NeedsRehash.Authenticated() {
		t.Fatal("Match and NeedsRehash must authenticate")
	}
}
