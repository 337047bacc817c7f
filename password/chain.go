package password

import (
	"errors"
	"strings"
)

// ErrUnsupportedHash is returned when a stored hash matches no known scheme.
var ErrUnsupportedHash = errors.New("unsupported password hash scheme")

// Chain hashes with argon2id and verifies both argon2id and legacy bcrypt hashes.
// Any successful bcrypt verification reports NeedsRehash so accounts migrate
// to argon2id on their next login.
type Chain struct {
	primary *Argon2
	legacy  *Bcrypt
}

// NewChain builds a Chain. legacy may be nil, in which case bcrypt hashes are
// rejected with ErrUnsupportedHash.
func NewChain(primary *Argon2, legacy *Bcrypt) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

func (c *Chain) Verify(password string, encodedHash string) (Result, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return c.primary.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		if c.legacy == nil {
			return Mismatch, ErrUnsupportedHash
		}
		res, err := c.legacy.Verify(password, encodedHash)
		if err != nil || !res.Authenticated() {
			return res, err
		}
		return NeedsRehash, nil
	default:
		return Mismatch, ErrUnsupportedHash
	}
}

func isBcrypt(encodedHash string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encodedHash, prefix) {
			return true
		}
	}
	return false
}
