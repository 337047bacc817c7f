package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/internal/appconfig"
	"github.com/MrEthical07/credcore/pgstore"
	"github.com/MrEthical07/credcore/redisstore"
	"github.com/MrEthical07/credcore/refresh"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// backend is the storage wired into the engine for one process.
type backend struct {
	store   refresh.Store
	users   credcore.UserDirectory
	pingers []pinger
	closers []func() error
}

func (b *backend) health(ctx context.Context) error {
	for _, p := range b.pingers {
		if _, err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// sqlPinger adapts *sql.DB to the pinger shape used by the stores.
type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := p.db.PingContext(ctx)
	return time.Since(start), err
}

func openBackend(ctx context.Context, s appconfig.Settings, logger zerolog.Logger) (*backend, error) {
	b := &backend{}
	switch s.Store {
	case appconfig.StoreMemory:
		b.store = refresh.NewMemoryStore()
		b.users = credcore.NewMemoryDirectory()
		logger.Warn().Msg("using in-memory storage; tokens and users are lost on restart")
		return b, nil

	case appconfig.StoreRedis, appconfig.StorePostgres:
		db, err := pgstore.Open(ctx, s.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := pgstore.Migrate(ctx, db); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.users = pgstore.NewUsers(db)

		if s.Store == appconfig.StorePostgres {
			store := pgstore.NewStore(db)
			b.store = store
			b.pingers = append(b.pingers, store)
			return b, nil
		}

		rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		b.closers = append(b.closers, rdb.Close)
		store := redisstore.NewStore(rdb, redisstore.Options{
			Prefix:    s.RedisPrefix,
			Retention: s.RedisRetention,
		})
		if _, err := store.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("redis %s: %w", s.RedisAddr, err)
		}
		b.store = store
		b.pingers = append(b.pingers, store, sqlPinger{db})
		return b, nil
	}
	return nil, fmt.Errorf("unknown store %q", s.Store)
}

// seedDevUser adds the development account to an in-memory directory. Other
// directories are managed with credctl.
func seedDevUser(b *backend, s appconfig.Settings, hash func(string) (string, error)) error {
	if s.DevUser == "" {
		return nil
	}
	dir, ok := b.users.(*credcore.MemoryDirectory)
	if !ok {
		return fmt.Errorf("CREDCORE_DEV_USER is only supported with the %s store", appconfig.StoreMemory)
	}
	encoded, err := hash(s.DevPassword)
	if err != nil {
		return err
	}
	return dir.Add(credcore.UserRecord{
		Identity: credcore.Identity{
			ID:       uuid.NewString(),
			Username: s.DevUser,
			Role:     "admin",
		},
		PasswordHash: encoded,
	})
}
