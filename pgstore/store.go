package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/credcore/internal/dbx"
	"github.com/MrEthical07/credcore/refresh"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Store is a PostgreSQL-backed refresh.Store.
type Store struct {
	db *sql.DB
}

var _ refresh.Store = (*Store)(nil)

// NewStore constructs a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", refresh.ErrStorageUnavailable, err)
}

func digest(value string) []byte {
	sum := refresh.Digest(value)
	return sum[:]
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Create implements refresh.Store.
//
// The subject's revocation row is locked for the length of the insert, so a
// concurrent RevokeAllForSubject either sees the new token or publishes a
// cutoff that Create then refuses.
func (s *Store) Create(ctx context.Context, rec refresh.Record) error {
	lockCutoff := `
		INSERT INTO subject_revocations (subject_id, cutoff)
		VALUES ($1, 'epoch')
		ON CONFLICT (subject_id) DO UPDATE SET cutoff = subject_revocations.cutoff
		RETURNING cutoff
	`
	insert := `
		INSERT INTO refresh_tokens (id, token_hash, subject_id, family_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var cutoff time.Time
		if err := tx.QueryRowContext(ctx, lockCutoff, rec.SubjectID).Scan(&cutoff); err != nil {
			return err
		}
		if !rec.CreatedAt.After(cutoff) {
			return refresh.ErrSubjectRevoked
		}
		_, err := tx.ExecContext(ctx, insert,
			rec.ID, digest(rec.Value), rec.SubjectID, rec.FamilyID, rec.CreatedAt, rec.ExpiresAt)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrSubjectRevoked):
			return err
		case isUniqueViolation(err):
			return refresh.ErrConflict
		}
		return unavailable(err)
	}
	return nil
}

// FindByValue implements refresh.Store.
func (s *Store) FindByValue(ctx context.Context, value string) (*refresh.Record, error) {
	query := `
		SELECT id, subject_id, family_id, created_at, expires_at, used, used_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var (
		rec       refresh.Record
		usedAt    sql.NullTime
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, digest(value)).Scan(
		&rec.ID, &rec.SubjectID, &rec.FamilyID, &rec.CreatedAt, &rec.ExpiresAt,
		&rec.Used, &usedAt, &rec.Revoked, &revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, unavailable(err)
	}
	if usedAt.Valid {
		rec.UsedAt = &usedAt.Time
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	rec.Value = value
	return &rec, nil
}

// MarkUsed implements refresh.Store. A revoked token is never marked used.
func (s *Store) MarkUsed(ctx context.Context, value string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET used = TRUE, used_at = $2
		WHERE token_hash = $1 AND NOT used AND NOT revoked
	`
	return s.markOnce(ctx, query, value, at)
}

// MarkRevoked implements refresh.Store.
func (s *Store) MarkRevoked(ctx context.Context, value string, at time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND NOT revoked
	`
	_, err := s.markOnce(ctx, query, value, at)
	return err
}

// markOnce runs a conditional UPDATE and, when no row changed, tells an
// unknown value apart from one that was already transitioned.
func (s *Store) markOnce(ctx context.Context, query, value string, at time.Time) (bool, error) {
	hash := digest(value)
	var changed bool

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, query, hash, at)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			changed = true
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`, hash,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return refresh.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return false, err
		}
		return false, unavailable(err)
	}
	return changed, nil
}

// RevokeAllForSubject implements refresh.Store.
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) (int, error) {
	raiseCutoff := `
		INSERT INTO subject_revocations (subject_id, cutoff)
		VALUES ($1, $2)
		ON CONFLICT (subject_id) DO UPDATE
		SET cutoff = GREATEST(subject_revocations.cutoff, EXCLUDED.cutoff)
	`
	revoke := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE subject_id = $1 AND NOT revoked AND created_at <= $2
	`
	var n int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, raiseCutoff, subjectID, at); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, revoke, subjectID, at)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// Ping returns a point-in-time database availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}
