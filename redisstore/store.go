package redisstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/credcore/refresh"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key. Defaults to "cc".
	Prefix string
	// Retention, when positive, lets Redis drop a token key this long after
	// its ExpiresAt. A dropped token reads as unknown rather than expired, so
	// this is an operator choice trading memory for that distinction. Zero
	// keeps every key until it is deleted out of band.
	Retention time.Duration
}

// Store is a Redis-backed refresh.Store.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ refresh.Store = (*Store)(nil)

// NewStore creates a [Store] backed by the given Redis client.
func NewStore(rdb redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = "cc"
	}
	if opts.Retention < 0 {
		opts.Retention = 0
	}
	return &Store{
		redis:     rdb,
		prefix:    opts.Prefix,
		retention: opts.Retention,
	}
}

func (s *Store) tokenPrefix() string {
	return s.prefix + ":rt:"
}

func (s *Store) tokenKey(value string) (key, digest string) {
	sum := refresh.Digest(value)
	digest = hex.EncodeToString(sum[:])
	return s.tokenPrefix() + digest, digest
}

func (s *Store) subjectKey(subjectID string) string {
	return s.prefix + ":sub:" + subjectID
}

func (s *Store) cutoffKey(subjectID string) string {
	return s.prefix + ":cut:" + subjectID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", refresh.ErrStorageUnavailable, err)
}

// Create implements refresh.Store.
//
//	Performance: 1 Lua script (GET + HSET + PEXPIREAT + SADD).
func (s *Store) Create(ctx context.Context, rec refresh.Record) error {
	key, digest := s.tokenKey(rec.Value)
	var expireAtMS, indexTTLMS int64
	if s.retention > 0 {
		expireAt := rec.ExpiresAt.Add(s.retention)
		indexTTL := time.Until(expireAt)
		if indexTTL < time.Second {
			indexTTL = time.Second
		}
		expireAtMS, indexTTLMS = expireAt.UnixMilli(), indexTTL.Milliseconds()
	}

	res, err := createLua.Run(ctx, s.redis,
		[]string{key, s.subjectKey(rec.SubjectID), s.cutoffKey(rec.SubjectID)},
		digest,
		rec.ID.String(),
		rec.SubjectID,
		rec.FamilyID.String(),
		rec.CreatedAt.UnixMicro(),
		rec.ExpiresAt.UnixMicro(),
		expireAtMS,
		indexTTLMS,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	switch res {
	case statusNoop:
		return refresh.ErrConflict
	case statusRejected:
		return refresh.ErrSubjectRevoked
	}
	return nil
}

// FindByValue implements refresh.Store.
//
//	Performance: 1 Redis HGETALL.
func (s *Store) FindByValue(ctx context.Context, value string) (*refresh.Record, error) {
	key, _ := s.tokenKey(value)

	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, refresh.ErrNotFound
	}

	rec, err := decodeRecord(fields)
	if err != nil {
		return nil, unavailable(err)
	}
	rec.Value = value
	return rec, nil
}

// MarkUsed implements refresh.Store. A revoked token is never marked used.
func (s *Store) MarkUsed(ctx context.Context, value string, at time.Time) (bool, error) {
	res, err := s.mark(ctx, markUsedLua, value, at)
	if err != nil {
		return false, err
	}
	return res == statusApplied, nil
}

// MarkRevoked implements refresh.Store.
func (s *Store) MarkRevoked(ctx context.Context, value string, at time.Time) error {
	_, err := s.mark(ctx, markRevokedLua, value, at)
	return err
}

func (s *Store) mark(ctx context.Context, script *redis.Script, value string, at time.Time) (int64, error) {
	key, _ := s.tokenKey(value)

	res, err := script.Run(ctx, s.redis, []string{key}, at.UnixMicro()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	if res == statusNotFound {
		return 0, refresh.ErrNotFound
	}
	return res, nil
}

// RevokeAllForSubject implements refresh.Store.
//
// The cutoff is kept under its own key so a Create racing the sweep cannot
// store a token the sweep should have covered.
//
//	Performance: 1 Lua script, O(tokens issued to the subject).
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) (int, error) {
	n, err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.subjectKey(subjectID), s.cutoffKey(subjectID)},
		s.tokenPrefix(),
		at.UnixMicro(),
		s.retention.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}

var errCorruptRecord = errors.New("corrupt refresh record")

func decodeRecord(fields map[string]string) (*refresh.Record, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", errCorruptRecord, err)
	}
	family, err := uuid.Parse(fields["fam"])
	if err != nil {
		return nil, fmt.Errorf("%w: fam: %v", errCorruptRecord, err)
	}
	created, err := parseMicros(fields["created"])
	if err != nil {
		return nil, fmt.Errorf("%w: created: %v", errCorruptRecord, err)
	}
	expires, err := parseMicros(fields["expires"])
	if err != nil {
		return nil, fmt.Errorf("%w: expires: %v", errCorruptRecord, err)
	}

	rec := &refresh.Record{
		ID:        id,
		SubjectID: fields["sub"],
		FamilyID:  family,
		CreatedAt: created,
		ExpiresAt: expires,
		Used:      fields["used"] == "1",
		Revoked:   fields["revoked"] == "1",
	}
	if rec.Used {
		at, err := parseMicros(fields["used_at"])
		if err != nil {
			return nil, fmt.Errorf("%w: used_at: %v", errCorruptRecord, err)
		}
		rec.UsedAt = &at
	}
	if rec.Revoked {
		at, err := parseMicros(fields["revoked_at"])
		if err != nil {
			return nil, fmt.Errorf("%w: revoked_at: %v", errCorruptRecord, err)
		}
		rec.RevokedAt = &at
	}
	return rec, nil
}

func parseMicros(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(n).UTC(), nil
}
