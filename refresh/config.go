package refresh

import (
	"errors"
	"time"

	"github.com/MrEthical07/credcore/internal"
)

// Config sets refresh token lifetime and value size.
type Config struct {
	TTL        time.Duration
	ValueBytes int
}

// DefaultConfig returns a 7-day lifetime and 256-bit values.
func DefaultConfig() Config {
	return Config{
		TTL:        7 * 24 * time.Hour,
		ValueBytes: internal.MinRefreshValueSize,
	}
}

// Validate checks the TTL is positive and ValueBytes is within [32, 512].
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return errors.New("refresh TTL must be > 0")
	}
	if c.ValueBytes < internal.MinRefreshValueSize {
		return errors.New("refresh ValueBytes must be >= 32")
	}
	if c.ValueBytes > 512 {
		return errors.New("refresh ValueBytes must be <= 512")
	}
	return nil
}
