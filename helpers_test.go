package credcore

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/credcore/password"
	"github.com/MrEthical07/credcore/refresh"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-password-123"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.JWT.Issuer = "credcore-test"
	cfg.JWT.Audience = "api"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *refresh.MemoryStore
	users  *MemoryDirectory
	config Config
}

func newTestEnv(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := NewMemoryDirectory()
	addTestUser(t, users, cfg, Identity{ID: "42", Username: "alice", Email: "alice@example.com", Role: "admin"})
	addTestUser(t, users, cfg, Identity{ID: "7", Username: "bob", Email: "bob@example.com", Role: "member"})

	store := refresh.NewMemoryStore()
	b := New().WithConfig(cfg).WithRefreshStore(store).WithUserDirectory(users)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, users: users, config: cfg}
}

func addTestUser(t testing.TB, users *MemoryDirectory, cfg Config, id Identity) {
	t.Helper()
	hasher, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := users.Add(UserRecord{Identity: id, PasswordHash: hash}); err != nil {
		t.Fatalf("add user: %v", err)
	}
}

func (env *testEnv) login(t testing.TB, username string) *Session {
	t.Helper()
	sess, err := env.engine.Login(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return sess
}

// failingStore wraps a store and reports the backend as unavailable for the
// selected operations.
type failingStore struct {
	refresh.Store
	failFind   bool
	failCreate bool
}

func (f *failingStore) FindByValue(ctx context.Context, value string) (*refresh.Record, error) {
	if f.failFind {
		return nil, refresh.ErrStorageUnavailable
	}
	return f.Store.FindByValue(ctx, value)
}

func (f *failingStore) Create(ctx context.Context, rec refresh.Record) error {
	if f.failCreate {
		return refresh.ErrStorageUnavailable
	}
	return f.Store.Create(ctx, rec)
}

func within(t testing.TB, got, want time.Time, tolerance time.Duration) {
	t.Helper()
	if d := got.Sub(want); d > tolerance || d < -tolerance {
		t.Fatalf("time %v not within %v of %v", got, tolerance, want)
	}
}
