package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptMaxPasswordBytes = 72

// Bcrypt verifies modular-crypt bcrypt hashes ($2a$, $2b$, $2y$) left behind by
// earlier deployments. It can also hash, but argon2id is preferred for new hashes.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt verifier that reports NeedsRehash for hashes below cost.
// A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > bcryptMaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify returns NeedsRehash for a correct password whose hash cost is below
// the configured cost.
func (b *Bcrypt) Verify(password string, encodedHash string) (Result, error) {
	if len(password) > bcryptMaxPasswordBytes {
		return Mismatch, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return Mismatch, nil
	}
	if err != nil {
		return Mismatch, err
	}

	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return Mismatch, err
	}
	if cost < b.cost {
		return NeedsRehash, nil
	}
	return Match, nil
}
