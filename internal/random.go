package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// MinRefreshValueSize is the smallest accepted number of random bytes in a
// refresh value (256 bits).
const MinRefreshValueSize = 32

func NewRefreshValue(size int) (string, error) {
	if size < MinRefreshValueSize {
		return "", errors.New("refresh value size below 256 bits")
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	// base64url, no padding, cookie and header safe
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func HashRefreshValue(value string) [32]byte {
	return sha256.Sum256([]byte(value))
}
