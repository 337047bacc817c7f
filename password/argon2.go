package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    = 8 * 1024
	minSaltLength  = 16
	minKeyLength   = 16
	minPassBytes   = 10
	minTimeCost    = 1
	minParallelism = 1

	// DefaultMaxPasswordBytes caps password input when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooLong is returned by Hash and Verify when the input exceeds the configured cap.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrPasswordTooShort is returned by Hash for passwords under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrMalformedHash wraps every failure to decode a stored argon2id hash.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Config holds argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// DefaultConfig returns the argon2id parameters used when none are supplied.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	case c.MaxPasswordBytes < 0, c.MaxPasswordBytes > 0 && c.MaxPasswordBytes < minPassBytes:
		return fmt.Errorf("max password bytes must be 0 or >= %d", minPassBytes)
	}
	return nil
}

// cost is the part of a hash that decides how expensive it was to compute.
type cost struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// weakerThan reports whether c is cheaper than target in any dimension.
func (c cost) weakerThan(target cost) bool {
	return c.memory < target.memory ||
		c.time < target.time ||
		c.threads < target.threads ||
		c.keyLen != target.keyLen
}

// Argon2 hashes new passwords with argon2id and verifies PHC-encoded hashes.
type Argon2 struct {
	cost     cost
	saltLen  uint32
	maxBytes int
}

// NewArgon2 validates cfg and returns a hasher for it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxBytes := cfg.MaxPasswordBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{
		cost: cost{
			memory:  cfg.Memory,
			time:    cfg.Time,
			threads: cfg.Parallelism,
			keyLen:  cfg.KeyLength,
		},
		saltLen:  cfg.SaltLength,
		maxBytes: maxBytes,
	}, nil
}

// Hash returns the PHC string for password with a fresh random salt. The
// password bytes are used as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < minPassBytes:
		return "", ErrPasswordTooShort
	case len(password) > a.maxBytes:
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := derive(password, salt, a.cost)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.cost.memory, a.cost.time, a.cost.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares password with encodedHash in constant time.
//
// It returns Mismatch for a wrong password, Match for a correct one, and
// NeedsRehash for a correct one whose hash is cheaper than a's parameters.
// A malformed hash is an error wrapping ErrMalformedHash, never a Mismatch.
func (a *Argon2) Verify(password, encodedHash string) (Result, error) {
	if len(password) > a.maxBytes {
		return Mismatch, ErrPasswordTooLong
	}
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return Mismatch, err
	}

	if subtle.ConstantTimeCompare(derive(password, stored.salt, stored.cost), stored.key) != 1 {
		return Mismatch, nil
	}
	if stored.cost.weakerThan(a.cost) {
		return NeedsRehash, nil
	}
	return Match, nil
}

// Outdated reports whether encodedHash was produced with weaker parameters
// than a, without checking a password.
func (a *Argon2) Outdated(encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return stored.cost.weakerThan(a.cost), nil
}

func derive(password string, salt []byte, c cost) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, c.keyLen)
}

type phc struct {
	cost cost
	salt []byte
	key  []byte
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, fmt.Sprintf(format, args...))
}

// decodePHC parses $argon2id$v=19$m=..,t=..,p=..$salt$key. Salt and key are
// accepted with or without base64 padding.
func decodePHC(encoded string) (*phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, malformed("expected 5 $-separated fields")
	}
	if fields[1] != algorithmID {
		return nil, malformed("algorithm %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, malformed("version field %q", fields[2])
	}
	if version != argon2.Version {
		return nil, malformed("unsupported version %d", version)
	}

	var (
		out     phc
		threads uint32
	)
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &out.cost.memory, &out.cost.time, &threads)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", out.cost.memory, out.cost.time, threads) != fields[3] {
		return nil, malformed("parameter field %q", fields[3])
	}
	if out.cost.memory < minMemoryKB || out.cost.time < minTimeCost || threads < minParallelism || threads > 255 {
		return nil, malformed("parameters out of range")
	}
	out.cost.threads = uint8(threads)

	if out.salt, err = decodeB64(fields[4]); err != nil || len(out.salt) < minSaltLength {
		return nil, malformed("salt")
	}
	if out.key, err = decodeB64(fields[5]); err != nil || len(out.key) == 0 {
		return nil, malformed("key")
	}
	out.cost.keyLen = uint32(len(out.key))
	return &out, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
