package credcore

import (
	"errors"

	internalaudit "github.com/MrEthical07/credcore/internal/audit"
	internalmetrics "github.com/MrEthical07/credcore/internal/metrics"
	"github.com/MrEthical07/credcore/jwt"
	"github.com/MrEthical07/credcore/password"
	"github.com/MrEthical07/credcore/refresh"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config

	store    refresh.Store
	users    UserDirectory
	verifier PasswordVerifier
	hasher   PasswordHasher

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRefreshStore sets the refresh token backend (required).
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.store = store
	return b
}

// WithUserDirectory sets the user lookup backend (required). If it also
// implements [PasswordHashUpdater], hashes are upgraded on login.
func (b *Builder) WithUserDirectory(users UserDirectory) *Builder {
	b.users = users
	return b
}

// WithPasswordVerifier overrides the default argon2id/bcrypt verifier chain.
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.verifier = v
	return b
}

// WithPasswordHasher overrides the hasher used for rehash-on-login.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets the audit event consumer. Audit must also be enabled in
// the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. Configuration
// problems match [ErrConfiguration].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, configError("refresh store required")
	}
	if b.users == nil {
		return nil, configError("user directory required")
	}

	signer, err := jwt.NewSigner(jwt.Config{
		Secret:       cloneBytes(cfg.JWT.Secret),
		Issuer:       cfg.JWT.Issuer,
		Audience:     cfg.JWT.Audience,
		AccessTTL:    cfg.JWT.AccessTTL,
		Leeway:       cfg.JWT.Leeway,
		MaxFutureIAT: cfg.JWT.MaxFutureIAT,
	})
	if err != nil {
		return nil, err
	}

	rotator, err := refresh.NewRotator(b.store, cfg.refreshConfig())
	if err != nil {
		return nil, configError(err.Error())
	}

	verifier, hasher := b.verifier, b.hasher
	if verifier == nil || hasher == nil {
		chain, err := newDefaultChain(cfg)
		if err != nil {
			return nil, configError(err.Error())
		}
		if verifier == nil {
			verifier = chain
		}
		if hasher == nil {
			hasher = chain
		}
	}

	dummyHash, err := hasher.Hash(unknownUserPassword)
	if err != nil {
		return nil, configError("password hasher: " + err.Error())
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		signer:   signer,
		rotator:  rotator,
		users:    b.users,
		verifier: verifier,
		hasher:   hasher,

		dummyHash: dummyHash,
	}
	if updater, ok := b.users.(PasswordHashUpdater); ok {
		engine.updater = updater
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

// unknownUserPassword is hashed once per engine; logins for unknown usernames
// verify against that hash.
const unknownUserPassword = "credcore-unknown-user"

func newDefaultChain(cfg Config) (*password.Chain, error) {
	primary, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}
	var legacy *password.Bcrypt
	if cfg.Password.BcryptCost != 0 {
		legacy, err = password.NewBcrypt(cfg.Password.BcryptCost)
		if err != nil {
			return nil, err
		}
	}
	return password.NewChain(primary, legacy), nil
}
