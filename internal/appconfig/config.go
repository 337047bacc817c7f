// Package appconfig loads settings for the credcore binaries. Values are
// layered: defaults, then an optional .env file, then the process
// environment, then command-line flags.
package appconfig

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/credcore"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Settings is the flattened binary configuration.
type Settings struct {
	Addr        string
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration

	Store          string
	RedisAddr      string
	RedisPrefix    string
	// RedisRetention lets Redis drop refresh token keys this long after they
	// expire. Zero keeps them.
	RedisRetention time.Duration
	DatabaseDSN    string

	CORSOrigins  []string
	CookieSecure bool
	TrustProxy   bool

	LogLevel string
	Audit    bool
	Metrics  bool

	DevUser     string
	DevPassword string
}

// Defaults returns the settings used when nothing else is supplied.
func Defaults() Settings {
	return Settings{
		Addr:        ":8080",
		JWTIssuer:   "credcore",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  7 * 24 * time.Hour,
		Store:       StoreMemory,
		RedisAddr:   "localhost:6379",
		RedisPrefix: "credcore",
		LogLevel:    "info",
		Metrics:     true,
	}
}

// Load reads envFile when it exists, overlays the environment and then the
// flags registered on fs from args. An empty envFile skips the file.
func Load(fs *flag.FlagSet, args []string, envFile string) (Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	s := Defaults()
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}

	var origins string
	fs.StringVar(&s.Addr, "addr", s.Addr, "listen address")
	fs.StringVar(&s.Store, "store", s.Store, "refresh token store: memory, redis or postgres")
	fs.StringVar(&s.RedisAddr, "redis-addr", s.RedisAddr, "redis address")
	fs.StringVar(&s.DatabaseDSN, "database-dsn", s.DatabaseDSN, "postgres connection string")
	fs.StringVar(&s.LogLevel, "log-level", s.LogLevel, "zerolog level")
	fs.StringVar(&origins, "cors-origins", strings.Join(s.CORSOrigins, ","), "comma separated CORS origins")
	fs.DurationVar(&s.AccessTTL, "access-ttl", s.AccessTTL, "access token lifetime")
	fs.DurationVar(&s.RefreshTTL, "refresh-ttl", s.RefreshTTL, "refresh token lifetime")
	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}
	s.CORSOrigins = splitList(origins)

	return s, s.Validate()
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("CREDCORE_ADDR", &s.Addr)
	str("CREDCORE_JWT_SECRET", &s.JWTSecret)
	str("CREDCORE_JWT_ISSUER", &s.JWTIssuer)
	str("CREDCORE_JWT_AUDIENCE", &s.JWTAudience)
	dur("CREDCORE_ACCESS_TTL", &s.AccessTTL)
	dur("CREDCORE_REFRESH_TTL", &s.RefreshTTL)
	str("CREDCORE_STORE", &s.Store)
	str("CREDCORE_REDIS_ADDR", &s.RedisAddr)
	str("CREDCORE_REDIS_PREFIX", &s.RedisPrefix)
	dur("CREDCORE_REDIS_RETENTION", &s.RedisRetention)
	str("CREDCORE_DATABASE_DSN", &s.DatabaseDSN)
	if v, ok := lookup("CREDCORE_CORS_ORIGINS"); ok {
		s.CORSOrigins = splitList(v)
	}
	boolean("CREDCORE_COOKIE_SECURE", &s.CookieSecure)
	boolean("CREDCORE_TRUST_PROXY", &s.TrustProxy)
	str("CREDCORE_LOG_LEVEL", &s.LogLevel)
	boolean("CREDCORE_AUDIT", &s.Audit)
	boolean("CREDCORE_METRICS", &s.Metrics)
	str("CREDCORE_DEV_USER", &s.DevUser)
	str("CREDCORE_DEV_PASSWORD", &s.DevPassword)

	return errors.Join(errs...)
}

// Validate checks the settings that are not covered by credcore.Config.Validate.
func (s Settings) Validate() error {
	switch s.Store {
	case StoreMemory:
	case StoreRedis, StorePostgres:
		if s.DatabaseDSN == "" {
			return fmt.Errorf("store %q needs CREDCORE_DATABASE_DSN for the users table", s.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", s.Store)
	}
	if s.RedisRetention < 0 {
		return errors.New("CREDCORE_REDIS_RETENTION must not be negative")
	}
	if (s.DevUser == "") != (s.DevPassword == "") {
		return errors.New("CREDCORE_DEV_USER and CREDCORE_DEV_PASSWORD must be set together")
	}
	return nil
}

// EngineConfig maps the settings onto a credcore configuration.
func (s Settings) EngineConfig() credcore.Config {
	cfg := credcore.DefaultConfig()
	cfg.JWT.Secret = []byte(s.JWTSecret)
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience
	cfg.JWT.AccessTTL = s.AccessTTL
	cfg.Refresh.TTL = s.RefreshTTL
	cfg.Audit.Enabled = s.Audit
	cfg.Metrics.Enabled = s.Metrics
	cfg.Metrics.EnableLatencyHistograms = s.Metrics
	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
