package password

// Result is the outcome of checking a password against a stored hash.
type Result int

const (
	// Mismatch is the zero value so an unset Result never authenticates.
	Mismatch Result = iota
	Match
	// NeedsRehash means the password matched but the stored hash should be
	// replaced with one produced by the current hasher.
	NeedsRehash
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case NeedsRehash:
		return "needs_rehash"
	default:
		return "mismatch"
	}
}

// Authenticated reports whether the password was correct.
func (r Result) Authenticated() bool {
	return r == Match || r == NeedsRehash
}

// Verifier checks a plaintext password against an encoded hash.
type Verifier interface {
	Verify(password, encodedHash string) (Result, error)
}

// Hasher produces encoded hashes for new or upgraded passwords.
type Hasher interface {
	Hash(password string) (string, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(password, encodedHash string) (Result, error)

func (f VerifierFunc) Verify(password, encodedHash string) (Result, error) {
	return f(password, encodedHash)
}
