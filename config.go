package credcore

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/credcore/password"
	"github.com/MrEthical07/credcore/refresh"
	"golang.org/x/crypto/bcrypt"
)

// Config is the complete engine configuration. Build copies it; later changes
// by the caller do not affect a built Engine.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access token signing. Only HS256 is supported.
type JWTConfig struct {
	Secret       []byte
	Issuer       string
	Audience     string
	AccessTTL    time.Duration
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig configures opaque refresh tokens.
type RefreshConfig struct {
	TTL        time.Duration
	ValueBytes int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures the default argon2id hasher. BcryptCost enables
// verification of legacy bcrypt hashes; zero disables it.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	BcryptCost       int
	UpgradeOnLogin   bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. JWT.Secret is empty and
// must be supplied before Build.
func DefaultConfig() Config {
	refreshDefaults := refresh.DefaultConfig()
	passwordDefaults := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:    15 * time.Minute,
			MaxFutureIAT: 10 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:        refreshDefaults.TTL,
			ValueBytes: refreshDefaults.ValueBytes,
		},
		Password: PasswordConfig{
			Memory:           passwordDefaults.Memory,
			Time:             passwordDefaults.Time,
			Parallelism:      passwordDefaults.Parallelism,
			SaltLength:       passwordDefaults.SaltLength,
			KeyLength:        passwordDefaults.KeyLength,
			MaxPasswordBytes: passwordDefaults.MaxPasswordBytes,
			BcryptCost:       bcrypt.DefaultCost,
			UpgradeOnLogin:   true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first problem found in c. Every error matches
// [ErrConfiguration].
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return configError("JWT Secret must not be empty")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.AccessTTL > time.Hour {
		return configError("JWT AccessTTL must be within (0, 1h]")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configError("JWT Leeway must be within [0, 2m]")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return configError("JWT MaxFutureIAT must be within [0, 24h]")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return configError("JWT Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return configError("JWT Audience must not be blank")
	}

	// Refresh
	if err := c.refreshConfig().Validate(); err != nil {
		return configError(err.Error())
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return configError("Refresh TTL must be greater than JWT AccessTTL")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return configError("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return configError("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return configError("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return configError("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return configError("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return configError("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost) {
		return configError("Password BcryptCost is out of range")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c *Config) refreshConfig() refresh.Config {
	return refresh.Config{TTL: c.Refresh.TTL, ValueBytes: c.Refresh.ValueBytes}
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}
